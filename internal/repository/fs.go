package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/util"
)

const documentExt = ".json"

// FSDocumentRepository keeps one <key>.json file per collection in a directory
// that several processes may share.
type FSDocumentRepository struct { // implements DocumentRepository
	changeNotifier

	root string

	hashes       hashTracker
	pollInterval time.Duration
	stop         context.CancelFunc
}

func NewFSDocumentRepository(root string, pollInterval time.Duration) *FSDocumentRepository {
	return &FSDocumentRepository{
		root:         root,
		hashes:       newHashTracker(),
		pollInterval: pollInterval,
	}
}

func (r *FSDocumentRepository) path(key model.ResourceKey) string {
	return filepath.Join(r.root, string(key)+documentExt)
}

func (r *FSDocumentRepository) Init(ctx context.Context) error {
	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return fmt.Errorf("error creating document directory %s: %w", r.root, err)
	}

	current, err := r.listHashes(ctx)
	if err != nil {
		return fmt.Errorf("error initializing documents: %w", err)
	}
	r.hashes.seed(current)

	watchCtx, cancel := context.WithCancel(context.Background())
	r.stop = cancel
	go watchHashes(watchCtx, "fs", r.pollInterval, r.listHashes, r.hashes, r.notify)

	return nil
}

func (r *FSDocumentRepository) listHashes(context.Context) (map[model.ResourceKey]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, err
	}

	hashes := make(map[model.ResourceKey]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), documentExt) {
			continue
		}
		key := model.ResourceKey(strings.TrimSuffix(entry.Name(), documentExt))

		content, err := os.ReadFile(filepath.Join(r.root, entry.Name()))
		if err != nil {
			return nil, err
		}
		hashes[key] = util.ContentHash(content)
	}
	return hashes, nil
}

func (r *FSDocumentRepository) Get(_ context.Context, key model.ResourceKey) ([]byte, error) {
	content, err := os.ReadFile(r.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading document %s: %w", key, err)
	}
	return content, nil
}

// Put replaces the file atomically so concurrent readers never see a partial document.
func (r *FSDocumentRepository) Put(_ context.Context, key model.ResourceKey, data []byte) error {
	tmp, err := os.CreateTemp(r.root, "."+string(key)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing document %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing document %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), r.path(key)); err != nil {
		return fmt.Errorf("error replacing document %s: %w", key, err)
	}

	if r.hashes.observe(key, util.ContentHash(data)) {
		r.notify(key)
	}
	return nil
}

func (r *FSDocumentRepository) Keys(ctx context.Context) ([]model.ResourceKey, error) {
	hashes, err := r.listHashes(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]model.ResourceKey, 0, len(hashes))
	for key := range hashes {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

func (r *FSDocumentRepository) Close() error {
	if r.stop != nil {
		r.stop()
	}
	return nil
}
