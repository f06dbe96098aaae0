package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound               = errors.New("recurso no encontrado")
	ErrUserNotFound           = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists     = errors.New("el email ya está registrado")
	ErrInvalidInput           = errors.New("entrada inválida")
	ErrDuplicate              = errors.New("recurso duplicado")
	ErrUnauthorized           = errors.New("no autorizado")
	ErrForbidden              = errors.New("acceso denegado")
	ErrConflict               = errors.New("conflicto con el estado actual")
	ErrInsufficientStock      = errors.New("stock insuficiente")
	ErrConcurrentModification = errors.New("el lote cambió durante la operación")
	ErrReferentialIntegrity   = errors.New("referencia a un registro inexistente")
	ErrStorage                = errors.New("fallo del almacenamiento")
)

// ValidationIssue describe un problema puntual de una entrada (campo o posición).
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError entrada mal formada o registro que no cumple su esquema.
type ValidationError struct {
	Schema string
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Field == "" {
			parts = append(parts, is.Message)
			continue
		}
		parts = append(parts, is.Field+": "+is.Message)
	}
	prefix := "validación"
	if e.Schema != "" {
		prefix = "validación " + e.Schema
	}
	return fmt.Sprintf("%s: %s", prefix, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError atajo para un único problema.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Issues: []ValidationIssue{{Field: field, Message: message}}}
}

// Shortfall faltante de un lote: lo disponible frente a lo pedido.
type Shortfall struct {
	BatchID   string          `json:"batch_id"`
	ProductID string          `json:"product_id,omitempty"`
	Available decimal.Decimal `json:"available"`
	Requested decimal.Decimal `json:"requested"`
	Inactive  bool            `json:"inactive,omitempty"`
}

// StockShortfallError uno o más lotes no alcanzan para la deducción pedida.
type StockShortfallError struct {
	Shortfalls []Shortfall
}

func (e *StockShortfallError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("lote %s: disponible %s, solicitado %s",
			s.BatchID, s.Available.String(), s.Requested.String()))
	}
	return "stock insuficiente: " + strings.Join(parts, "; ")
}

func (e *StockShortfallError) Unwrap() error { return ErrInsufficientStock }

// ConcurrentModificationError el stock leído dentro de la transacción difiere del pre-chequeo.
type ConcurrentModificationError struct {
	BatchID  string
	Expected decimal.Decimal
	Actual   decimal.Decimal
	Vanished bool
}

func (e *ConcurrentModificationError) Error() string {
	if e.Vanished {
		return fmt.Sprintf("lote %s desapareció durante la operación", e.BatchID)
	}
	return fmt.Sprintf("lote %s modificado concurrentemente: esperado %s, actual %s",
		e.BatchID, e.Expected.String(), e.Actual.String())
}

func (e *ConcurrentModificationError) Unwrap() error { return ErrConcurrentModification }

// DuplicateOperationError la operación (p. ej. una venta) ya fue confirmada.
type DuplicateOperationError struct {
	Kind string
	ID   string
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("%s %s ya fue registrada", e.Kind, e.ID)
}

func (e *DuplicateOperationError) Unwrap() error { return ErrDuplicate }

// ReferentialIntegrityError cliente, producto o ingrediente referenciado que no existe.
type ReferentialIntegrityError struct {
	Entity string
	ID     string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%s %s no existe", e.Entity, e.ID)
}

func (e *ReferentialIntegrityError) Unwrap() error { return ErrReferentialIntegrity }

// InvalidTransitionError transición de estado no permitida (apartados).
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s en estado %s no admite %s", e.Entity, e.ID, e.From, e.Action)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrConflict }

// StorageError fallo de lectura/escritura del almacén subyacente.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("almacenamiento (%s): %v", e.Op, e.Err)
}

// Unwrap expone tanto el sentinel como la causa original.
func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// Classify deja pasar los errores tipados del dominio y envuelve el resto como StorageError.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrInvalidInput, ErrInsufficientStock, ErrConcurrentModification, ErrDuplicate,
		ErrReferentialIntegrity, ErrStorage, ErrConflict, ErrNotFound,
		ErrEmailAlreadyExists, ErrUserNotFound, ErrUnauthorized, ErrForbidden,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &StorageError{Op: op, Err: err}
}

// IsStockError indica si err es un faltante de stock (recuperable por el usuario).
func IsStockError(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}
