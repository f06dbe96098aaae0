package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/pos-lotes/internal/domain/repository"
)

//go:embed schema.sql
var schemaSQL string

// Store agrupa pool, runner y repositorios fuera de transacción.
type Store struct {
	*TxRunner
	pool *pgxpool.Pool
}

// NewStore construye el almacén sobre el pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{TxRunner: NewTxRunner(pool), pool: pool}
}

// Repositories repositorios sobre el pool (lecturas y escrituras sueltas).
func (s *Store) Repositories() repository.Repos {
	return reposFor(s.pool)
}

// Users repositorio de usuarios.
func (s *Store) Users() repository.UserRepository {
	return NewUserRepository(s.pool)
}

// Migrate crea las tablas si no existen. El esquema es idempotente.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("aplicar esquema: %w", err)
	}
	return nil
}
