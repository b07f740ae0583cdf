package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

type AppliedWriteRepository struct {
	pool *pgxpool.Pool
}

var _ ports.AppliedWriteRepository = (*AppliedWriteRepository)(nil)

func NewAppliedWriteRepository(pool *pgxpool.Pool) *AppliedWriteRepository {
	return &AppliedWriteRepository{pool: pool}
}

func (r *AppliedWriteRepository) Record(ctx context.Context, id uuid.UUID, kind string, actorID uuid.UUID) (bool, error) {
	const query = `
		INSERT INTO applied_writes (id, kind, actor_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`

	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, query, id, kind, actorID)
	if err != nil {
		return false, fmt.Errorf("record applied write: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
