package logstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
	"github.com/V4T54L/visitor-ingest/internal/domain"
	"github.com/V4T54L/visitor-ingest/internal/pkg/fsutil"
)

const (
	// DefaultMaxRecords is the per-category capacity.
	DefaultMaxRecords = 1000
	filePerm          = 0644
	dirPerm           = 0755
)

var errCorrupt = errors.New("log file is not a JSON array")

var fileNames = map[domain.Category]string{
	domain.CategoryTraffic:         "traffic_log.json",
	domain.CategoryIPCheck:         "ipcheck_requests.json",
	domain.CategoryVisitors:        "visitors.json",
	domain.CategoryFormSubmissions: "form_submissions.json",
}

// FileStore is a domain.LogStore keeping one JSON array file per category.
// Each append rewrites the file atomically and keeps only the newest
// maxRecords entries.
type FileStore struct {
	dir        string
	maxRecords int
	logger     *slog.Logger
	metrics    *metrics.IngestMetrics

	mu    sync.Mutex
	locks map[domain.Category]*sync.Mutex
}

// NewFileStore creates a FileStore rooted at dir. The directory and files are
// created lazily on first append. m may be nil.
func NewFileStore(dir string, maxRecords int, logger *slog.Logger, m *metrics.IngestMetrics) *FileStore {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	locks := make(map[domain.Category]*sync.Mutex, len(fileNames))
	for c := range fileNames {
		locks[c] = &sync.Mutex{}
	}
	return &FileStore{
		dir:        dir,
		maxRecords: maxRecords,
		logger:     logger.With("component", "log_store"),
		metrics:    m,
		locks:      locks,
	}
}

// Append adds record to the category's log, evicting the oldest entries
// beyond capacity. Unreadable or corrupt existing data is logged and replaced.
func (s *FileStore) Append(ctx context.Context, category domain.Category, record any) error {
	path, lock, err := s.resolve(category)
	if err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", category, err)
	}

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := s.load(path)
	if err != nil {
		s.logger.Warn("existing log unusable, starting empty", "category", category, "path", path, "error", err)
		records = nil
	}

	records = append(records, data)
	if len(records) > s.maxRecords {
		records = records[len(records)-s.maxRecords:]
	}

	if err := s.write(path, records); err != nil {
		s.logger.Error("failed to write log store", "category", category, "error", err)
		if s.metrics != nil {
			s.metrics.StoreWriteErrors.WithLabelValues(string(category)).Inc()
		}
		return fmt.Errorf("%w: append to %s: %w", domain.ErrStoreUnavailable, category, err)
	}

	if s.metrics != nil {
		s.metrics.StoreRecords.WithLabelValues(string(category)).Set(float64(len(records)))
	}
	return nil
}

// ReadAll returns the category's records, oldest first. A missing or corrupt
// file reads as empty.
func (s *FileStore) ReadAll(ctx context.Context, category domain.Category) ([]json.RawMessage, error) {
	path, lock, err := s.resolve(category)
	if err != nil {
		return nil, err
	}

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := s.load(path)
	if err != nil {
		if errors.Is(err, errCorrupt) {
			s.logger.Warn("corrupt log store read as empty", "category", category, "error", err)
			return []json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrStoreUnavailable, category, err)
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}

// MaxRecords returns the per-category capacity.
func (s *FileStore) MaxRecords() int {
	return s.maxRecords
}

func (s *FileStore) resolve(category domain.Category) (string, *sync.Mutex, error) {
	name, ok := fileNames[category]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	s.mu.Lock()
	lock := s.locks[category]
	s.mu.Unlock()
	return filepath.Join(s.dir, name), lock, nil
}

func (s *FileStore) load(path string) ([]json.RawMessage, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(content) == 0 {
		return nil, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(content, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return records, nil
}

func (s *FileStore) write(path string, records []json.RawMessage) error {
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", s.dir, err)
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal log records: %w", err)
	}
	return fsutil.AtomicWriteFile(path, payload, filePerm)
}
