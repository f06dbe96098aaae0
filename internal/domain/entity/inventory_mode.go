package entity

// InventoryMode modo de control de inventario de un producto. Conjunto cerrado.
type InventoryMode int

const (
	// ModeUntracked no descuenta stock.
	ModeUntracked InventoryMode = iota
	// ModeDirect contador de stock en el propio producto.
	ModeDirect
	// ModeLots stock en lotes (FIFO por fecha de creación).
	ModeLots
	// ModeVariants stock en variantes; mismas reglas que los lotes.
	ModeVariants
	// ModeRecipe producto compuesto: se descuentan sus ingredientes.
	ModeRecipe
)

func (m InventoryMode) String() string {
	switch m {
	case ModeUntracked:
		return "sin_control"
	case ModeDirect:
		return "simple"
	case ModeLots:
		return "lotes"
	case ModeVariants:
		return "variantes"
	case ModeRecipe:
		return "receta"
	default:
		return "desconocido"
	}
}

// UsesBatches indica si el stock del modo vive en lotes.
func (m InventoryMode) UsesBatches() bool {
	switch m {
	case ModeLots, ModeVariants:
		return true
	case ModeUntracked, ModeDirect, ModeRecipe:
		return false
	default:
		return false
	}
}
