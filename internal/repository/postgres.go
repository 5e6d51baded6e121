package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/util"
)

const postgresChangeChannel = "collection_changes"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
    key TEXT PRIMARY KEY,
    content BYTEA NOT NULL,
    content_hash TEXT NOT NULL,
    modified_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresDocumentRepository stores documents in one table and uses
// LISTEN/NOTIFY to tell every connected process about writes.
type PostgresDocumentRepository struct { // implements DocumentRepository
	changeNotifier

	databaseURL string
	pool        *pgxpool.Pool
	stop        context.CancelFunc
	done        chan struct{}
}

func NewPostgresDocumentRepository(databaseURL string) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{databaseURL: databaseURL}
}

func (r *PostgresDocumentRepository) Init(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(r.databaseURL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping db: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return fmt.Errorf("create schema: %w", err)
	}
	r.pool = pool

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+postgresChangeChannel); err != nil {
		conn.Release()
		return fmt.Errorf("listen %s: %w", postgresChangeChannel, err)
	}

	listenCtx, stop := context.WithCancel(context.Background())
	r.stop = stop
	r.done = make(chan struct{})
	go r.listen(listenCtx, conn)

	return nil
}

func (r *PostgresDocumentRepository) listen(ctx context.Context, conn *pgxpool.Conn) {
	defer close(r.done)
	defer conn.Release()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				repoLogger.Error().Err(err).Msg("Error waiting for document notifications")
			}
			return
		}
		r.notify(model.ResourceKey(n.Payload))
	}
}

func (r *PostgresDocumentRepository) Get(ctx context.Context, key model.ResourceKey) ([]byte, error) {
	var content []byte
	err := r.pool.QueryRow(ctx, `SELECT content FROM documents WHERE key = $1`, string(key)).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", key, err)
	}
	return content, nil
}

func (r *PostgresDocumentRepository) Put(ctx context.Context, key model.ResourceKey, data []byte) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO documents (key, content, content_hash, modified_at) VALUES ($1, $2, $3, now())
			ON CONFLICT (key) DO UPDATE SET
				content = EXCLUDED.content,
				content_hash = EXCLUDED.content_hash,
				modified_at = EXCLUDED.modified_at`,
			string(key), data, util.ContentHash(data),
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, postgresChangeChannel, string(key))
		return err
	})
	if err != nil {
		return fmt.Errorf("save document %s: %w", key, err)
	}
	return nil
}

func (r *PostgresDocumentRepository) Keys(ctx context.Context) ([]model.ResourceKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT key FROM documents ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ResourceKey, error) {
		var key string
		err := row.Scan(&key)
		return model.ResourceKey(key), err
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return keys, nil
}

func (r *PostgresDocumentRepository) Close() error {
	if r.stop != nil {
		r.stop()
		<-r.done
	}
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}
