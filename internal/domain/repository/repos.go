package repository

// Repos agrupa los repositorios atados a una misma transacción.
type Repos struct {
	Products       ProductRepository
	Batches        BatchRepository
	Sales          SaleRepository
	Customers      CustomerRepository
	Reservations   ReservationRepository
	TransactionLog TransactionLogRepository
}
