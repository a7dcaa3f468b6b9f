package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/AjCapo90/lingua-forge/internal/domain"
)

const testLabel = "English Vocabulary in Use Pre-intermediate and Intermediate"

// mockRepo stores rows in memory and records calls. It also acts as the
// TxRunner: a failing transaction restores the rows it started with.
type mockRepo struct {
	mu sync.Mutex

	rows map[string][]domain.IndexEntry

	deleteErr     error
	insertErr     error
	countErr      error
	listErr       error
	countOverride map[domain.Priority]int

	callLog []string
}

func newMockRepo() *mockRepo {
	return &mockRepo{rows: make(map[string][]domain.IndexEntry)}
}

func (m *mockRepo) logCall(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callLog = append(m.callLog, name)
}

func (m *mockRepo) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.callLog)
}

func (m *mockRepo) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.logCall("RunInTx")

	m.mu.Lock()
	snapshot := make(map[string][]domain.IndexEntry, len(m.rows))
	for k, v := range m.rows {
		snapshot[k] = slices.Clone(v)
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.rows = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *mockRepo) DeleteBySource(_ context.Context, label string) (int, error) {
	m.logCall("DeleteBySource")
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.rows[label])
	delete(m.rows, label)
	return n, nil
}

func (m *mockRepo) BulkInsertEntries(_ context.Context, entries []domain.IndexEntry) (int, error) {
	m.logCall("BulkInsertEntries")
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.rows[e.SourceLabel] = append(m.rows[e.SourceLabel], e)
	}
	return len(entries), nil
}

func (m *mockRepo) CountByPriority(_ context.Context, label string) (map[domain.Priority]int, error) {
	m.logCall("CountByPriority")
	if m.countErr != nil {
		return nil, m.countErr
	}
	if m.countOverride != nil {
		return maps.Clone(m.countOverride), nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.Priority]int, len(domain.AllPriorities))
	for _, p := range domain.AllPriorities {
		counts[p] = 0
	}
	for _, e := range m.rows[label] {
		counts[e.Priority]++
	}
	return counts, nil
}

func (m *mockRepo) ListBySource(_ context.Context, filter domain.IndexFilter) ([]domain.IndexEntry, error) {
	m.logCall("ListBySource")
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.rows[filter.SourceLabel])
	slices.SortFunc(out, func(a, b domain.IndexEntry) int { return a.Position - b.Position })
	return out, nil
}

func (m *mockRepo) ListSources(_ context.Context) ([]string, error) {
	m.logCall("ListSources")
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.rows)), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testdataPath(t *testing.T, name string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	return filepath.Join(filepath.Dir(file), "testdata", name)
}

func sampleSource(t *testing.T) Source {
	t.Helper()
	return Source{
		Label:       testLabel,
		Path:        testdataPath(t, "evu_index.txt"),
		StartMarker: "a bit [slightly]",
		Footer:      "English Vocabulary in Use",
	}
}

func testConfig(sources ...Source) Config {
	return Config{
		Sources:     sources,
		BatchSize:   500,
		Concurrency: 2,
		Thresholds: Thresholds{
			PhoneticRatio:    0.6,
			MinUnit:          1,
			MaxUnit:          100,
			EssentialMaxUnit: 30,
			CommonMaxUnit:    60,
		},
	}
}

func staleRows(label string, n int) []domain.IndexEntry {
	rows := make([]domain.IndexEntry, n)
	for i := range rows {
		rows[i] = domain.IndexEntry{
			SourceLabel: label,
			Term:        fmt.Sprintf("stale %d", i),
			Units:       []int{1},
			Priority:    domain.PriorityEssential,
			Position:    i,
		}
	}
	return rows
}

func TestPipeline_DryRunWritesExportOnly(t *testing.T) {
	cfg := testConfig(sampleSource(t))
	cfg.DryRun = true
	cfg.OutputDir = t.TempDir()

	p := NewPipeline(testLogger(), nil, nil, cfg)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.HasErrors() {
		t.Fatalf("unexpected errors: %+v", p.Results())
	}

	res := p.Results()[0]
	wantPath := filepath.Join(cfg.OutputDir, "english-vocabulary-in-use-pre-intermediate-and-intermediate.json")
	if res.Output != wantPath {
		t.Errorf("Output = %q, want %q", res.Output, wantPath)
	}
	if res.Inserted != 0 || res.Deleted != 0 {
		t.Errorf("dry run touched storage: deleted=%d inserted=%d", res.Deleted, res.Inserted)
	}
	if !res.Stats.MarkerFound {
		t.Error("MarkerFound = false")
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var rec catalogRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if rec.Source != testLabel || rec.Total != 5 || len(rec.Vocabulary) != 5 {
		t.Errorf("unexpected export: source=%q total=%d vocabulary=%d", rec.Source, rec.Total, len(rec.Vocabulary))
	}
	if rec.ByPriority[1] != 2 || rec.ByPriority[2] != 1 || rec.ByPriority[3] != 2 {
		t.Errorf("by_priority = %v", rec.ByPriority)
	}
	if rec.Vocabulary[0].Term != "a bit [slightly]" || rec.Vocabulary[0].IPA != "əˈbɪt" {
		t.Errorf("first entry = %+v", rec.Vocabulary[0])
	}
}

func TestPipeline_PersistReplacesSource(t *testing.T) {
	repo := newMockRepo()
	repo.rows[testLabel] = staleRows(testLabel, 2)
	repo.rows["other"] = staleRows("other", 1)

	cfg := testConfig(sampleSource(t))
	cfg.BatchSize = 2

	p := NewPipeline(testLogger(), repo, repo, cfg)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.HasErrors() {
		t.Fatalf("unexpected error: %v", p.Results()[0].Err)
	}

	res := p.Results()[0]
	if res.Deleted != 2 || res.Inserted != 5 {
		t.Errorf("deleted=%d inserted=%d, want 2 and 5", res.Deleted, res.Inserted)
	}
	if res.Output != "" {
		t.Errorf("Output = %q, want no export", res.Output)
	}

	wantCalls := []string{
		"RunInTx", "DeleteBySource",
		"BulkInsertEntries", "BulkInsertEntries", "BulkInsertEntries",
		"CountByPriority",
	}
	if got := repo.calls(); !slices.Equal(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}

	stored := repo.rows[testLabel]
	if len(stored) != 5 {
		t.Fatalf("stored %d rows, want 5", len(stored))
	}
	for i, row := range stored {
		if row.Position != i {
			t.Errorf("row %q position = %d, want %d", row.Term, row.Position, i)
		}
		if row.SourceLabel != testLabel {
			t.Errorf("row %q label = %q", row.Term, row.SourceLabel)
		}
	}
	if stored[1].TermNormalized != "get on" {
		t.Errorf("TermNormalized = %q, want %q", stored[1].TermNormalized, "get on")
	}
	if len(repo.rows["other"]) != 1 {
		t.Errorf("other source rows = %d, want 1", len(repo.rows["other"]))
	}
}

func TestPipeline_InsertFailureRollsBack(t *testing.T) {
	boom := errors.New("connection reset")
	repo := newMockRepo()
	repo.rows[testLabel] = staleRows(testLabel, 2)
	repo.insertErr = boom

	p := NewPipeline(testLogger(), repo, repo, testConfig(sampleSource(t)))
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run should not fail on source errors: %v", err)
	}
	if !p.HasErrors() {
		t.Fatal("expected HasErrors")
	}
	if err := p.Results()[0].Err; !errors.Is(err, boom) {
		t.Errorf("Err = %v, want wrapped %v", err, boom)
	}
	if n := len(repo.rows[testLabel]); n != 2 {
		t.Errorf("stored rows = %d, want the 2 previous rows", n)
	}
}

func TestPipeline_CountMismatchRollsBack(t *testing.T) {
	repo := newMockRepo()
	repo.countOverride = map[domain.Priority]int{
		domain.PriorityEssential: 2,
		domain.PriorityCommon:    1,
		domain.PriorityAdvanced:  1,
	}

	p := NewPipeline(testLogger(), repo, repo, testConfig(sampleSource(t)))
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	err := p.Results()[0].Err
	if err == nil || !strings.Contains(err.Error(), "do not match") {
		t.Fatalf("Err = %v, want count mismatch", err)
	}
	if _, ok := repo.rows[testLabel]; ok {
		t.Error("rows of a failed import were kept")
	}
}

func TestPipeline_ErrorIsolation(t *testing.T) {
	repo := newMockRepo()
	missing := Source{Label: "missing", Path: filepath.Join(t.TempDir(), "nope.txt")}

	p := NewPipeline(testLogger(), repo, repo, testConfig(missing, sampleSource(t)))
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	results := p.Results()
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !errors.Is(results[0].Err, os.ErrNotExist) {
		t.Errorf("missing source Err = %v, want os.ErrNotExist", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("sample source failed: %v", results[1].Err)
	}
	if results[1].Label != testLabel || results[1].Inserted != 5 {
		t.Errorf("sample result = %+v", results[1])
	}

	deletes := 0
	for _, c := range repo.calls() {
		if c == "DeleteBySource" {
			deletes++
		}
	}
	if deletes != 1 {
		t.Errorf("DeleteBySource called %d times, want 1", deletes)
	}
}

func TestPipeline_Stdin(t *testing.T) {
	cfg := testConfig(Source{Label: "stdin", Path: "-"})
	cfg.DryRun = true

	p := NewPipeline(testLogger(), nil, nil, cfg)
	p.stdin = strings.NewReader("a bit [slightly]\r\nəˈbɪt\r\n1, 4\r\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := p.Results()[0]
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if res.Catalog.Total != 1 || res.Catalog.Entries[0].Phonetic != "əˈbɪt" {
		t.Errorf("catalog = %+v", res.Catalog)
	}
	if res.Stats.MarkerFound {
		t.Error("MarkerFound = true without a configured marker")
	}
}

func TestPipeline_RequiresRepoUnlessDryRun(t *testing.T) {
	p := NewPipeline(testLogger(), nil, nil, testConfig(sampleSource(t)))

	if err := p.Run(context.Background()); !errors.Is(err, ErrNoRepo) {
		t.Fatalf("Run error = %v, want ErrNoRepo", err)
	}
}

func TestPipeline_InvalidConfig(t *testing.T) {
	repo := newMockRepo()
	p := NewPipeline(testLogger(), repo, repo, testConfig())

	if err := p.Run(context.Background()); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Run error = %v, want ErrValidation", err)
	}
	if len(repo.calls()) != 0 {
		t.Errorf("repo called: %v", repo.calls())
	}
}

func TestPipeline_Canceled(t *testing.T) {
	repo := newMockRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(testLogger(), repo, repo, testConfig(sampleSource(t)))
	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if len(repo.calls()) != 0 {
		t.Errorf("repo called after cancel: %v", repo.calls())
	}
}

func TestPipeline_ExportStoredMatchesExport(t *testing.T) {
	repo := newMockRepo()
	cfg := testConfig(sampleSource(t))
	cfg.OutputDir = t.TempDir()

	p := NewPipeline(testLogger(), repo, repo, cfg)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := p.Results()[0]
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}

	exported, err := os.ReadFile(res.Output)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}

	var buf bytes.Buffer
	if err := p.ExportStored(context.Background(), testLabel, &buf); err != nil {
		t.Fatalf("ExportStored: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), exported) {
		t.Errorf("stored export differs from file export:\n%s\nvs\n%s", buf.String(), exported)
	}

	err = p.ExportStored(context.Background(), "unknown", &buf)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ExportStored(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestPipeline_StoredSources(t *testing.T) {
	repo := newMockRepo()
	repo.rows["b"] = staleRows("b", 1)
	repo.rows["a"] = staleRows("a", 1)

	p := NewPipeline(testLogger(), repo, repo, testConfig())
	labels, err := p.StoredSources(context.Background())
	if err != nil {
		t.Fatalf("StoredSources: %v", err)
	}
	if !slices.Equal(labels, []string{"a", "b"}) {
		t.Errorf("labels = %v", labels)
	}

	noRepo := NewPipeline(testLogger(), nil, nil, testConfig())
	if _, err := noRepo.StoredSources(context.Background()); !errors.Is(err, ErrNoRepo) {
		t.Errorf("error = %v, want ErrNoRepo", err)
	}
	if err := noRepo.ExportStored(context.Background(), "a", &bytes.Buffer{}); !errors.Is(err, ErrNoRepo) {
		t.Errorf("error = %v, want ErrNoRepo", err)
	}
}

func TestBatchProcess(t *testing.T) {
	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}

	var batches [][]int
	total, err := batchProcess(items, 3, func(batch []int) (int, error) {
		batches = append(batches, batch)
		return len(batch), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 10 {
		t.Errorf("total = %d, want 10", total)
	}
	if len(batches) != 4 {
		t.Fatalf("batches = %d, want 4", len(batches))
	}
	if len(batches[3]) != 1 {
		t.Errorf("last batch size = %d, want 1", len(batches[3]))
	}
}

func TestBatchProcess_EmptySlice(t *testing.T) {
	called := false
	total, err := batchProcess([]int{}, 5, func(batch []int) (int, error) {
		called = true
		return 0, nil
	})
	if err != nil || total != 0 || called {
		t.Errorf("total=%d err=%v called=%v", total, err, called)
	}
}

func TestBatchProcess_ErrorStops(t *testing.T) {
	boom := errors.New("fail")
	calls := 0
	total, err := batchProcess([]int{1, 2, 3, 4, 5}, 2, func(batch []int) (int, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		return len(batch), nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if total != 2 || calls != 2 {
		t.Errorf("total=%d calls=%d, want 2 and 2", total, calls)
	}
}

func TestPipeline_StoredEntries(t *testing.T) {
	repo := newMockRepo()
	repo.rows["a"] = staleRows("a", 3)

	p := NewPipeline(testLogger(), repo, repo, testConfig())
	rows, err := p.StoredEntries(context.Background(), domain.IndexFilter{SourceLabel: "a"})
	if err != nil {
		t.Fatalf("StoredEntries: %v", err)
	}
	if len(rows) != 3 || rows[0].Term != "stale 0" {
		t.Errorf("rows = %+v", rows)
	}

	boom := errors.New("db down")
	repo.listErr = boom
	if _, err := p.StoredEntries(context.Background(), domain.IndexFilter{SourceLabel: "a"}); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}
