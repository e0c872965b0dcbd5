package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SequenceService hands out gapless per-year document numbers for orders and
// purchase orders, e.g. "SO-2026-00042". Numbers are generated inside the
// caller's transaction so an aborted creation never burns one.
type SequenceService interface {
	NextNumberTx(ctx context.Context, tx pgx.Tx, typeCode string, year int) (string, error)
}

type sequenceService struct {
	pool *pgxpool.Pool
}

func NewSequenceService(pool *pgxpool.Pool) SequenceService {
	return &sequenceService{pool: pool}
}

// NextNumberTx bumps the (type_code, year) counter under an upsert row lock
// and returns the formatted number. Concurrent callers serialize on the
// sequence row, which is what makes the numbering gapless.
func (s *sequenceService) NextNumberTx(ctx context.Context, tx pgx.Tx, typeCode string, year int) (string, error) {
	var lastNumber int64
	err := tx.QueryRow(ctx, `
		INSERT INTO number_sequences (type_code, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (type_code, year)
		DO UPDATE SET last_number = number_sequences.last_number + 1
		RETURNING last_number
	`, typeCode, year).Scan(&lastNumber)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s sequence number: %w", typeCode, err)
	}
	return fmt.Sprintf("%s-%d-%05d", typeCode, year, lastNumber), nil
}
