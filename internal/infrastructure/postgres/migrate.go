package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema DDL do motor de estoque. stock_movements é append-only: o schema não
// tem UPDATE/DELETE em nenhum caminho de código, e UNIQUE (item_id, sequence)
// é o backstop do ponto de linearização caso um segundo processo escritor
// apareça — ele falha alto em vez de bifurcar o stream.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS stock_items (
		id                UUID PRIMARY KEY,
		code              TEXT NOT NULL UNIQUE,
		name              TEXT NOT NULL,
		category_id       TEXT NOT NULL DEFAULT '',
		unit              TEXT NOT NULL DEFAULT 'un',
		minimum_threshold NUMERIC(18,4) NOT NULL DEFAULT 0,
		unit_cost         NUMERIC(18,4) NOT NULL DEFAULT 0,
		location          TEXT NOT NULL DEFAULT '',
		archived          BOOLEAN NOT NULL DEFAULT FALSE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		id             UUID PRIMARY KEY,
		item_id        UUID NOT NULL REFERENCES stock_items(id),
		sequence       BIGINT NOT NULL,
		kind           TEXT NOT NULL,
		quantity_delta NUMERIC(18,4) NOT NULL,
		ts             TIMESTAMPTZ NOT NULL,
		source_ref     TEXT NOT NULL DEFAULT '',
		note           TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (item_id, sequence)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_item_seq
		ON stock_movements (item_id, sequence)`,
	`CREATE TABLE IF NOT EXISTS stock_projections (
		item_id               UUID PRIMARY KEY REFERENCES stock_items(id),
		quantity_on_hand      NUMERIC(18,4) NOT NULL DEFAULT 0,
		last_sequence_applied BIGINT NOT NULL DEFAULT 0,
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pending_movements (
		id             UUID PRIMARY KEY,
		item_id        UUID NOT NULL,
		kind           TEXT NOT NULL,
		quantity_delta NUMERIC(18,4) NOT NULL,
		ts             TIMESTAMPTZ NOT NULL,
		source_ref     TEXT NOT NULL DEFAULT '',
		note           TEXT NOT NULL DEFAULT '',
		attempts       INT NOT NULL DEFAULT 0,
		last_error     TEXT NOT NULL DEFAULT '',
		parked_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate aplica o schema de forma idempotente no startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("aplicar schema: %w", err)
		}
	}
	return nil
}
