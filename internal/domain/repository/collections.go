package repository

// Nombres de colecciones del almacén (claves de caché e invalidación).
const (
	CollectionProducts     = "productos"
	CollectionBatches      = "lotes"
	CollectionSales        = "ventas"
	CollectionCustomers    = "clientes"
	CollectionReservations = "apartados"
)
