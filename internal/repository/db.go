package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/debemdeboas/lending-admin/internal/db"
	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/util"
	"github.com/debemdeboas/lending-admin/internal/util/compression"
)

type DBDocumentRepository struct { // implements DocumentRepository
	changeNotifier

	db         db.DB
	compressor compression.Compressor

	hashes       hashTracker
	pollInterval time.Duration
	stop         context.CancelFunc
}

func NewDBDocumentRepository(database db.DB, compressor compression.Compressor, pollInterval time.Duration) *DBDocumentRepository {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &DBDocumentRepository{
		db:           database,
		compressor:   compressor,
		hashes:       newHashTracker(),
		pollInterval: pollInterval,
	}
}

func (r *DBDocumentRepository) Init(ctx context.Context) error {
	if r.db.Get() == nil {
		if err := r.db.InitDB(); err != nil {
			return fmt.Errorf("error initializing database: %w", err)
		}
	}

	current, err := r.listHashes(ctx)
	if err != nil {
		return fmt.Errorf("error initializing documents: %w", err)
	}
	r.hashes.seed(current)

	watchCtx, cancel := context.WithCancel(context.Background())
	r.stop = cancel
	go watchHashes(watchCtx, "db", r.pollInterval, r.listHashes, r.hashes, r.notify)

	return nil
}

func (r *DBDocumentRepository) listHashes(ctx context.Context) (map[model.ResourceKey]string, error) {
	rows, err := r.db.Get().QueryContext(ctx, `SELECT key, content_hash FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("error querying document hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[model.ResourceKey]string)
	for rows.Next() {
		var key, hash string
		if err := rows.Scan(&key, &hash); err != nil {
			return nil, fmt.Errorf("error scanning document hash: %w", err)
		}
		hashes[model.ResourceKey(key)] = hash
	}
	return hashes, rows.Err()
}

func (r *DBDocumentRepository) Get(ctx context.Context, key model.ResourceKey) ([]byte, error) {
	var compressed []byte
	row := r.db.Get().QueryRowContext(ctx, `SELECT content FROM documents WHERE key = ?`, string(key))
	if err := row.Scan(&compressed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("error reading document %s: %w", key, err)
	}

	content, err := r.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing document %s: %w", key, err)
	}
	return content, nil
}

func (r *DBDocumentRepository) Put(ctx context.Context, key model.ResourceKey, data []byte) error {
	compressed, err := r.compressor.Compress(data)
	if err != nil {
		return fmt.Errorf("error compressing document %s: %w", key, err)
	}

	hash := util.ContentHash(data)
	res, err := r.db.Get().ExecContext(ctx, `
		INSERT INTO documents (key, content, content_hash, modified_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content = excluded.content,
			content_hash = excluded.content_hash,
			modified_at = excluded.modified_at`,
		string(key), compressed, hash, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("error saving document %s: %w", key, err)
	}

	repoLogger.Debug().Interface("result", res).Str("resource", string(key)).Msg("Document saved")

	if r.hashes.observe(key, hash) {
		r.notify(key)
	}
	return nil
}

func (r *DBDocumentRepository) Keys(ctx context.Context) ([]model.ResourceKey, error) {
	rows, err := r.db.Get().QueryContext(ctx, `SELECT key FROM documents ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("error listing documents: %w", err)
	}
	defer rows.Close()

	var keys []model.ResourceKey
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("error scanning document key: %w", err)
		}
		keys = append(keys, model.ResourceKey(key))
	}
	return keys, rows.Err()
}

func (r *DBDocumentRepository) Close() error {
	if r.stop != nil {
		r.stop()
	}
	return r.db.Close()
}
