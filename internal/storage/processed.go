package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const processedFileName = "processed_sales.json"

// ProcessedStore is the set of sale identifiers that have already been
// announced.
type ProcessedStore interface {
	// Load returns every recorded identifier in persisted order.
	Load(ctx context.Context) ([]string, error)

	// Append records one identifier and rewrites the backing file
	// immediately. Appending an identifier that is already present is a
	// no-op.
	Append(ctx context.Context, id string) error
}

// FileStore persists the identifier set as a JSON array of strings in a
// single file under the data directory. The format is shared with
// external tooling, so the file is always rewritten in full and order is
// preserved. The mutex guards the load-modify-persist sequence should
// more than one poller ever run in-process.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewFileStore prepares the data directory and seeds an empty set when
// the file does not exist yet.
func NewFileStore(dataDir string, logger zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(dataDir, processedFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return nil, fmt.Errorf("seed processed sales file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat processed sales file: %w", err)
	}

	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "processed_store").Logger(),
	}, nil
}

// Load implements ProcessedStore.
func (s *FileStore) Load(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Append implements ProcessedStore.
func (s *FileStore) Append(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal processed sales: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write processed sales file: %w", err)
	}

	s.logger.Debug().Str("id", id).Int("total", len(ids)).Msg("recorded processed sale")
	return nil
}

func (s *FileStore) load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read processed sales file: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse processed sales file: %w", err)
	}
	return ids, nil
}

var _ ProcessedStore = (*FileStore)(nil)
