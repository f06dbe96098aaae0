package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-lotes/internal/application/dto"
	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
	"github.com/jhoicas/pos-lotes/internal/domain/schema"
	"github.com/jhoicas/pos-lotes/pkg/logger"
)

// ProductUseCase casos de uso del catálogo. Cost y Stock los mueve el inventario, no el catálogo.
type ProductUseCase struct {
	repo   repository.ProductRepository
	engine *inventory.Engine
	schema inventory.SchemaValidator
	cache  Cache
	log    *logger.Logger
	now    func() time.Time
}

// NewProductUseCase construye el caso de uso. cache puede ser nil.
func NewProductUseCase(repo repository.ProductRepository, engine *inventory.Engine, validator inventory.SchemaValidator, cache Cache, log *logger.Logger) *ProductUseCase {
	if cache == nil {
		cache = directCache{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProductUseCase{repo: repo, engine: engine, schema: validator, cache: cache, log: log.Component("catalogo"), now: time.Now}
}

// Create crea un producto. Un producto por lotes arranca en cero: su stock llega con los lotes.
func (uc *ProductUseCase) Create(ctx context.Context, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	if in.SKU != "" {
		existing, err := uc.repo.GetBySKU(ctx, in.SKU)
		if err != nil {
			return nil, domain.Classify("buscar producto", err)
		}
		if existing != nil {
			return nil, domain.ErrDuplicate
		}
	}
	recipe, err := uc.recipe(ctx, "", in.Recipe)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	product := &entity.Product{
		ID:              uuid.New().String(),
		SKU:             in.SKU,
		Name:            strings.TrimSpace(in.Name),
		Price:           in.Price,
		Cost:            in.Cost,
		Stock:           in.Stock,
		TracksStock:     in.TracksStock,
		BatchManagement: entity.BatchManagement{Enabled: in.BatchManagement, Variants: in.BatchManagement && in.Variants},
		Recipe:          recipe,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if product.InventoryMode() != entity.ModeDirect {
		product.Stock = decimal.Zero
	}
	if err := uc.schema.Validate(schema.Product, product); err != nil {
		return nil, err
	}
	if err := uc.repo.Create(ctx, product); err != nil {
		return nil, domain.Classify("crear producto", err)
	}
	uc.invalidate(ctx)
	uc.log.Info().Str("product_id", product.ID).Str("modo", product.InventoryMode().String()).Msg("producto creado")
	return toProductResponse(product), nil
}

// GetByID obtiene un producto por ID (cacheado).
func (uc *ProductUseCase) GetByID(ctx context.Context, id string) (*dto.ProductResponse, error) {
	var out *dto.ProductResponse
	err := uc.cache.GetOrLoad(ctx, repository.CollectionProducts, "id:"+id, &out, func(ctx context.Context) (any, error) {
		p, err := uc.repo.GetByID(ctx, id)
		if err != nil {
			return nil, domain.Classify("leer producto", err)
		}
		return toProductResponse(p), nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

// Update actualiza datos del catálogo. Al activar el manejo por lotes el stock se recalcula desde los lotes.
func (uc *ProductUseCase) Update(ctx context.Context, id string, in dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	product, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Classify("leer producto", err)
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}
	if in.SKU != nil {
		sku := strings.TrimSpace(*in.SKU)
		if sku != "" && sku != product.SKU {
			other, err := uc.repo.GetBySKU(ctx, sku)
			if err != nil {
				return nil, domain.Classify("buscar producto", err)
			}
			if other != nil && other.ID != id {
				return nil, domain.ErrDuplicate
			}
		}
		product.SKU = sku
	}
	if in.Name != nil {
		product.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		product.Price = *in.Price
	}
	if in.TracksStock != nil {
		product.TracksStock = *in.TracksStock
	}
	if in.BatchManagement != nil {
		product.BatchManagement.Enabled = *in.BatchManagement
	}
	if in.Variants != nil {
		product.BatchManagement.Variants = *in.Variants
	}
	product.BatchManagement.Variants = product.BatchManagement.Enabled && product.BatchManagement.Variants
	if in.Recipe != nil {
		recipe, err := uc.recipe(ctx, id, in.Recipe)
		if err != nil {
			return nil, err
		}
		product.Recipe = recipe
	}
	product.UpdatedAt = uc.now()
	if err := uc.schema.Validate(schema.Product, product); err != nil {
		return nil, err
	}
	if err := uc.repo.Update(ctx, product); err != nil {
		return nil, domain.Classify("actualizar producto", err)
	}
	if product.IsBatchManaged() {
		synced, err := uc.engine.Sync.SyncProductFromLots(ctx, id)
		if err != nil {
			return nil, err
		}
		if synced != nil {
			product = synced
		}
	}
	uc.invalidate(ctx)
	return toProductResponse(product), nil
}

// List lista productos con paginación (cacheado por página).
func (uc *ProductUseCase) List(ctx context.Context, limit, offset int) (*dto.ProductListResponse, error) {
	page := dto.PageRequest{Limit: limit, Offset: offset}
	page.DefaultPage()
	var out dto.ProductListResponse
	key := fmt.Sprintf("list:%d:%d", page.Limit, page.Offset)
	err := uc.cache.GetOrLoad(ctx, repository.CollectionProducts, key, &out, func(ctx context.Context) (any, error) {
		list, err := uc.repo.List(ctx, page.Limit, page.Offset)
		if err != nil {
			return nil, domain.Classify("listar productos", err)
		}
		items := make([]dto.ProductResponse, 0, len(list))
		for _, p := range list {
			items = append(items, *toProductResponse(p))
		}
		return dto.ProductListResponse{Items: items, Page: dto.PageResponse{Limit: page.Limit, Offset: page.Offset}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Sync fuerza la resincronización del producto desde sus lotes.
func (uc *ProductUseCase) Sync(ctx context.Context, id string) (*dto.ProductResponse, error) {
	p, err := uc.engine.Sync.SyncProductFromLots(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return toProductResponse(p), nil
}

// recipe valida los ingredientes: existen, no son recetas y no incluyen al propio producto.
func (uc *ProductUseCase) recipe(ctx context.Context, selfID string, in []dto.RecipeItemDTO) ([]entity.RecipeItem, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]entity.RecipeItem, 0, len(in))
	for i, r := range in {
		field := fmt.Sprintf("recipe[%d]", i)
		if r.IngredientID == selfID && selfID != "" {
			return nil, domain.NewValidationError(field, "un producto no puede ser ingrediente de sí mismo")
		}
		ing, err := uc.repo.GetByID(ctx, r.IngredientID)
		if err != nil {
			return nil, domain.Classify("leer ingrediente", err)
		}
		if ing == nil {
			return nil, &domain.ReferentialIntegrityError{Entity: "ingrediente", ID: r.IngredientID}
		}
		if ing.InventoryMode() == entity.ModeRecipe {
			return nil, domain.NewValidationError(field, "el ingrediente es a su vez una receta")
		}
		out = append(out, entity.RecipeItem{IngredientID: r.IngredientID, Quantity: r.Quantity})
	}
	return out, nil
}

func (uc *ProductUseCase) invalidate(ctx context.Context) {
	if err := uc.cache.Invalidate(ctx, repository.CollectionProducts); err != nil {
		uc.log.Warn().Err(err).Msg("invalidar caché")
	}
}

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	if p == nil {
		return nil
	}
	var recipe []dto.RecipeItemDTO
	for _, r := range p.Recipe {
		recipe = append(recipe, dto.RecipeItemDTO{IngredientID: r.IngredientID, Quantity: r.Quantity})
	}
	return &dto.ProductResponse{
		ID:              p.ID,
		SKU:             p.SKU,
		Name:            p.Name,
		Price:           p.Price,
		Cost:            p.Cost,
		Stock:           p.Stock,
		TracksStock:     p.TracksStock,
		BatchManagement: p.BatchManagement.Enabled,
		Variants:        p.BatchManagement.Variants,
		InventoryMode:   p.InventoryMode().String(),
		Recipe:          recipe,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
