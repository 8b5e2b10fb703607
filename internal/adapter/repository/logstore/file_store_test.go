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
	"testing"

	"github.com/V4T54L/visitor-ingest/internal/domain"
)

type testRecord struct {
	Seq int `json:"seq"`
}

func setupTestStore(t *testing.T, maxRecords int) (*FileStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "logs")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return NewFileStore(dir, maxRecords, logger, nil), dir
}

func decodeSeqs(t *testing.T, records []json.RawMessage) []int {
	t.Helper()
	seqs := make([]int, 0, len(records))
	for _, raw := range records {
		var r testRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			t.Fatalf("failed to decode record %s: %v", raw, err)
		}
		seqs = append(seqs, r.Seq)
	}
	return seqs
}

func TestFileStore_AppendEvictsOldest(t *testing.T) {
	tests := []struct {
		name       string
		maxRecords int
		appends    int
	}{
		{name: "Below capacity", maxRecords: 5, appends: 3},
		{name: "At capacity", maxRecords: 5, appends: 5},
		{name: "Over capacity", maxRecords: 5, appends: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := setupTestStore(t, tt.maxRecords)
			ctx := context.Background()

			for i := 0; i < tt.appends; i++ {
				if err := store.Append(ctx, domain.CategoryTraffic, testRecord{Seq: i}); err != nil {
					t.Fatalf("Append(%d) failed: %v", i, err)
				}
			}

			records, err := store.ReadAll(ctx, domain.CategoryTraffic)
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}

			want := min(tt.appends, tt.maxRecords)
			seqs := decodeSeqs(t, records)
			if len(seqs) != want {
				t.Fatalf("expected %d records, got %d", want, len(seqs))
			}
			first := tt.appends - want
			for i, seq := range seqs {
				if seq != first+i {
					t.Errorf("record %d: expected seq %d, got %d", i, first+i, seq)
				}
			}
		})
	}
}

func TestFileStore_DefaultCapacity(t *testing.T) {
	store, _ := setupTestStore(t, 0)
	ctx := context.Background()

	const appends = DefaultMaxRecords + 3
	for i := 0; i < appends; i++ {
		if err := store.Append(ctx, domain.CategoryIPCheck, testRecord{Seq: i}); err != nil {
			t.Fatalf("Append(%d) failed: %v", i, err)
		}
	}

	records, err := store.ReadAll(ctx, domain.CategoryIPCheck)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	seqs := decodeSeqs(t, records)
	if len(seqs) != DefaultMaxRecords {
		t.Fatalf("expected %d records, got %d", DefaultMaxRecords, len(seqs))
	}
	if seqs[0] != 3 || seqs[len(seqs)-1] != appends-1 {
		t.Errorf("unexpected window [%d..%d]", seqs[0], seqs[len(seqs)-1])
	}
}

func TestFileStore_CreatedLazily(t *testing.T) {
	store, dir := setupTestStore(t, 10)

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected log directory to be absent before first write, stat err = %v", err)
	}

	records, err := store.ReadAll(context.Background(), domain.CategoryVisitors)
	if err != nil {
		t.Fatalf("ReadAll on missing store failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty log, got %d records", len(records))
	}

	if err := store.Append(context.Background(), domain.CategoryVisitors, testRecord{Seq: 1}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "visitors.json")); err != nil {
		t.Fatalf("expected visitors.json to exist: %v", err)
	}
}

func TestFileStore_CorruptFileTreatedAsEmpty(t *testing.T) {
	store, dir := setupTestStore(t, 10)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "traffic_log.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := store.ReadAll(context.Background(), domain.CategoryTraffic)
	if err != nil {
		t.Fatalf("ReadAll on corrupt store failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected corrupt store to read as empty, got %d", len(records))
	}

	if err := store.Append(context.Background(), domain.CategoryTraffic, testRecord{Seq: 7}); err != nil {
		t.Fatalf("Append over corrupt store failed: %v", err)
	}
	records, _ = store.ReadAll(context.Background(), domain.CategoryTraffic)
	if seqs := decodeSeqs(t, records); len(seqs) != 1 || seqs[0] != 7 {
		t.Errorf("expected [7], got %v", seqs)
	}
}

func TestFileStore_WriteFailure(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	store := NewFileStore(filepath.Join(blocker, "logs"), 10, logger, nil)

	err := store.Append(context.Background(), domain.CategoryTraffic, testRecord{Seq: 1})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestFileStore_UnknownCategory(t *testing.T) {
	store, _ := setupTestStore(t, 10)
	err := store.Append(context.Background(), domain.Category("audit"), testRecord{})
	if !errors.Is(err, domain.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestFileStore_ConcurrentAppends(t *testing.T) {
	store, _ := setupTestStore(t, 1000)
	ctx := context.Background()

	const writers, perWriter = 20, 10
	var wg sync.WaitGroup
	errCh := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := store.Append(ctx, domain.CategoryFormSubmissions, testRecord{Seq: w*perWriter + i}); err != nil {
					errCh <- fmt.Errorf("writer %d: %w", w, err)
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}

	records, err := store.ReadAll(ctx, domain.CategoryFormSubmissions)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	seen := make(map[int]bool)
	for _, seq := range decodeSeqs(t, records) {
		if seen[seq] {
			t.Errorf("record %d stored twice", seq)
		}
		seen[seq] = true
	}
	if len(seen) != writers*perWriter {
		t.Errorf("expected %d distinct records, got %d", writers*perWriter, len(seen))
	}
}
