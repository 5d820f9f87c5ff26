package storage

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgraph-io/ristretto"
	_ "github.com/mattn/go-sqlite3"

	"github.com/adalundhe/lattice/core/errors"
	"github.com/adalundhe/lattice/core/tensor"
)

//go:embed schema.sql
var schemaSQL string

// Tensor names persisted per module.
const (
	TensorLayerStates      = "layer_states"
	TensorLatentTrajectory = "latent_trajectory"
)

const (
	defaultBlobCacheBytes = 256 << 20
	blobCacheCounters     = 1 << 16
	blobCacheBuffer       = 64
)

// IndexRecord is the persisted form of one index entry. The index package
// owns the in-memory representation; the store only round-trips records in
// position order.
type IndexRecord struct {
	Position      int
	ModuleID      string
	Name          string
	ModuleType    string
	Description   string
	TokenCount    int
	MeanEmbedding []float32
}

// Store is the sqlite-backed compiled store. Index entries are replaced
// wholesale after a compilation run; tensor blobs are written per module and
// loaded lazily behind a ristretto read cache.
type Store struct {
	db        *sql.DB
	path      string
	blobCache *ristretto.Cache
	logger    *slog.Logger
}

// Open opens (creating if necessary) the store at path.
func Open(path string, cacheBytes int64, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheBytes <= 0 {
		cacheBytes = defaultBlobCacheBytes
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_synchronous=normal", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", path, err)
	}
	// Single writer; the serve path is read-mostly.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store at %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store at %s: %w", path, err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: blobCacheCounters,
		MaxCost:     cacheBytes,
		BufferItems: blobCacheBuffer,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create blob cache: %w", err)
	}

	return &Store{db: db, path: path, blobCache: cache, logger: logger}, nil
}

func (s *Store) Close() error {
	s.blobCache.Close()
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// PutTensor writes one named tensor blob for a module, replacing any
// previous value and invalidating the read cache.
func (s *Store) PutTensor(moduleID, name string, m *tensor.Matrix) error {
	blob := tensor.Encode(m)
	_, err := s.db.Exec(
		`INSERT INTO tensors (module_id, tensor_name, data) VALUES (?, ?, ?)
		 ON CONFLICT(module_id, tensor_name) DO UPDATE SET data = excluded.data`,
		moduleID, name, blob,
	)
	if err != nil {
		return fmt.Errorf("put tensor %s/%s: %w", moduleID, name, err)
	}
	s.blobCache.Del(blobKey(moduleID, name))
	return nil
}

// LoadTensor loads one named tensor blob for a module. Misses and decode
// failures surface as KindBlobLoad so retrieval can skip the entry.
func (s *Store) LoadTensor(moduleID, name string) (*tensor.Matrix, error) {
	key := blobKey(moduleID, name)
	if cached, ok := s.blobCache.Get(key); ok {
		if m, ok := cached.(*tensor.Matrix); ok {
			return m, nil
		}
	}

	var blob []byte
	err := s.db.QueryRow(
		`SELECT data FROM tensors WHERE module_id = ? AND tensor_name = ?`,
		moduleID, name,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, errors.BlobLoad(err, "tensor %s/%s not in store", moduleID, name)
	}
	if err != nil {
		return nil, errors.BlobLoad(err, "read tensor %s/%s", moduleID, name)
	}

	m, err := tensor.Decode(blob)
	if err != nil {
		return nil, errors.BlobLoad(err, "decode tensor %s/%s", moduleID, name)
	}
	s.blobCache.Set(key, m, int64(len(blob)))
	return m, nil
}

// DeleteModuleTensors evicts all tensor blobs for a module.
func (s *Store) DeleteModuleTensors(moduleID string) error {
	_, err := s.db.Exec(`DELETE FROM tensors WHERE module_id = ?`, moduleID)
	if err != nil {
		return fmt.Errorf("delete tensors for %s: %w", moduleID, err)
	}
	s.blobCache.Del(blobKey(moduleID, TensorLayerStates))
	s.blobCache.Del(blobKey(moduleID, TensorLatentTrajectory))
	return nil
}

func blobKey(moduleID, name string) string {
	return moduleID + "\x00" + name
}

// ReplaceIndex atomically replaces the persisted index with the given
// records, preserving their order.
func (s *Store) ReplaceIndex(records []IndexRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin index replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM index_entries`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO index_entries
		 (position, module_id, name, module_type, description, token_count, mean_embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare index insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		blob := tensor.EncodeVector(r.MeanEmbedding)
		if _, err := stmt.Exec(i, r.ModuleID, r.Name, r.ModuleType, r.Description, r.TokenCount, blob); err != nil {
			return fmt.Errorf("insert index entry %s: %w", r.ModuleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index replace: %w", err)
	}
	s.logger.Debug("index persisted", slog.Int("entries", len(records)))
	return nil
}

// LoadIndex reads all index records in position order.
func (s *Store) LoadIndex() ([]IndexRecord, error) {
	rows, err := s.db.Query(
		`SELECT position, module_id, name, module_type, description, token_count, mean_embedding
		 FROM index_entries ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	defer rows.Close()

	var records []IndexRecord
	for rows.Next() {
		var r IndexRecord
		var blob []byte
		if err := rows.Scan(&r.Position, &r.ModuleID, &r.Name, &r.ModuleType, &r.Description, &r.TokenCount, &blob); err != nil {
			return nil, fmt.Errorf("scan index entry: %w", err)
		}
		vec, err := tensor.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", r.ModuleID, err)
		}
		r.MeanEmbedding = vec
		records = append(records, r)
	}
	return records, rows.Err()
}

// LoadContentHashes reads the delta compiler's prior-run hash map.
func (s *Store) LoadContentHashes() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT module_id, hash FROM content_hashes`)
	if err != nil {
		return nil, fmt.Errorf("load content hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("scan content hash: %w", err)
		}
		hashes[id] = hash
	}
	return hashes, rows.Err()
}

// SaveContentHashes atomically replaces the persisted hash map. Called only
// after a compilation run completes successfully.
func (s *Store) SaveContentHashes(hashes map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin hash save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM content_hashes`); err != nil {
		return fmt.Errorf("clear content hashes: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO content_hashes (module_id, hash) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare hash insert: %w", err)
	}
	defer stmt.Close()

	for id, hash := range hashes {
		if _, err := stmt.Exec(id, hash); err != nil {
			return fmt.Errorf("insert hash for %s: %w", id, err)
		}
	}
	return tx.Commit()
}
