package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/pos-lotes/internal/application/dto"
	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
)

// CustomerUseCase casos de uso para clientes. La deuda solo la mueven ventas fiadas.
type CustomerUseCase struct {
	repo  repository.CustomerRepository
	cache Cache
}

// NewCustomerUseCase construye el caso de uso. cache puede ser nil.
func NewCustomerUseCase(repo repository.CustomerRepository, cache Cache) *CustomerUseCase {
	if cache == nil {
		cache = directCache{}
	}
	return &CustomerUseCase{repo: repo, cache: cache}
}

// Create crea un nuevo cliente.
func (uc *CustomerUseCase) Create(ctx context.Context, in dto.CreateCustomerRequest) (*dto.CustomerResponse, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, domain.NewValidationError("name", "requerido")
	}
	now := time.Now()
	customer := &entity.Customer{
		ID:        uuid.New().String(),
		Name:      in.Name,
		TaxID:     strings.TrimSpace(in.TaxID),
		Email:     in.Email,
		Phone:     in.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, customer); err != nil {
		return nil, domain.Classify("crear cliente", err)
	}
	// un fallo de caché no revierte el alta; las entradas vencen por TTL
	_ = uc.cache.Invalidate(ctx, repository.CollectionCustomers)
	return toCustomerResponse(customer), nil
}

// GetByID obtiene un cliente con su deuda actual.
func (uc *CustomerUseCase) GetByID(ctx context.Context, id string) (*dto.CustomerResponse, error) {
	var out *dto.CustomerResponse
	err := uc.cache.GetOrLoad(ctx, repository.CollectionCustomers, "id:"+id, &out, func(ctx context.Context) (any, error) {
		c, err := uc.repo.GetByID(ctx, id)
		if err != nil {
			return nil, domain.Classify("leer cliente", err)
		}
		return toCustomerResponse(c), nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

// List lista clientes.
func (uc *CustomerUseCase) List(ctx context.Context, limit, offset int) ([]*dto.CustomerResponse, error) {
	page := dto.PageRequest{Limit: limit, Offset: offset}
	page.DefaultPage()
	var out []*dto.CustomerResponse
	key := fmt.Sprintf("list:%d:%d", page.Limit, page.Offset)
	err := uc.cache.GetOrLoad(ctx, repository.CollectionCustomers, key, &out, func(ctx context.Context) (any, error) {
		list, err := uc.repo.List(ctx, page.Limit, page.Offset)
		if err != nil {
			return nil, domain.Classify("listar clientes", err)
		}
		res := make([]*dto.CustomerResponse, 0, len(list))
		for _, c := range list {
			res = append(res, toCustomerResponse(c))
		}
		return res, nil
	})
	return out, err
}

func toCustomerResponse(c *entity.Customer) *dto.CustomerResponse {
	if c == nil {
		return nil
	}
	return &dto.CustomerResponse{
		ID:        c.ID,
		Name:      c.Name,
		TaxID:     c.TaxID,
		Email:     c.Email,
		Phone:     c.Phone,
		Debt:      c.Debt,
		CreatedAt: c.CreatedAt,
	}
}
