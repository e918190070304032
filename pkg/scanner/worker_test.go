package scanner

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"taskcam/pkg/structurer"
)

// fakeSink records saved pages and can be told to fail.
type fakeSink struct {
	mu    sync.Mutex
	saved []*structurer.Page
	err   error
}

func (f *fakeSink) SaveDaily(ctx context.Context, scanID string, page *structurer.Page) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, page)
	return "2025-01-15", nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func testPage(statuses ...structurer.Status) *structurer.Page {
	page := &structurer.Page{}
	for i, s := range statuses {
		page.Tasks = append(page.Tasks, structurer.Task{
			Name: "task", Status: s, Order: i + 1,
		})
	}
	return page
}

func testWorker(t *testing.T, engine structurer.Engine, sink Sink) *Worker {
	t.Helper()
	cache, err := NewCache(filepath.Join(t.TempDir(), "lastscan.json"))
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return NewWorker(engine, sink, cache)
}

func TestWorker_FullScanSavesAndCaches(t *testing.T) {
	engine := structurer.NewMock()
	engine.StructureFunc = func(ctx context.Context, jpeg []byte) (*structurer.Page, error) {
		return testPage(structurer.StatusNotStarted, structurer.StatusInProgress), nil
	}
	sink := &fakeSink{}
	w := testWorker(t, engine, sink)

	res := w.process(context.Background(), Job{JPEG: []byte("jpeg")})
	if res.Err != nil {
		t.Fatalf("process: %v", res.Err)
	}
	if res.Turbo {
		t.Error("first scan with an empty cache must be a full scan")
	}
	if sink.count() != 1 {
		t.Errorf("expected 1 save, got %d", sink.count())
	}
	if w.cache.Page() == nil {
		t.Error("successful scan must populate the cache")
	}
}

func TestWorker_TurboSkipsModel(t *testing.T) {
	engine := structurer.NewMock()
	engine.StructureFunc = func(ctx context.Context, jpeg []byte) (*structurer.Page, error) {
		return testPage(structurer.StatusNotStarted, structurer.StatusNotStarted), nil
	}
	sink := &fakeSink{}
	w := testWorker(t, engine, sink)

	first := w.process(context.Background(), Job{JPEG: []byte("jpeg")})
	if first.Err != nil {
		t.Fatalf("first scan: %v", first.Err)
	}

	// Same task count, one checkbox now ticked
	second := w.process(context.Background(), Job{
		JPEG:        []byte("jpeg"),
		StatusOrder: []string{"COMPLETED", "NOT_STARTED"},
	})
	if second.Err != nil {
		t.Fatalf("second scan: %v", second.Err)
	}
	if !second.Turbo {
		t.Error("matching task count should take the turbo path")
	}
	if calls := engine.Calls(); calls != 1 {
		t.Errorf("turbo scan must not call the model, got %d calls", calls)
	}

	saved := sink.saved[1]
	if saved.Tasks[0].Status != structurer.StatusCompleted {
		t.Errorf("turbo scan did not apply the fresh status: %+v", saved.Tasks[0])
	}
}

func TestWorker_CountChangeForcesFullScan(t *testing.T) {
	engine := structurer.NewMock()
	engine.StructureFunc = func(ctx context.Context, jpeg []byte) (*structurer.Page, error) {
		return testPage(structurer.StatusNotStarted), nil
	}
	sink := &fakeSink{}
	w := testWorker(t, engine, sink)

	w.process(context.Background(), Job{JPEG: []byte("jpeg")})

	// Cached page has 1 task, detector now sees 3 symbols
	res := w.process(context.Background(), Job{
		JPEG:        []byte("jpeg"),
		StatusOrder: []string{"NOT_STARTED", "NOT_STARTED", "NOT_STARTED"},
	})
	if res.Turbo {
		t.Error("symbol count change must force a full model scan")
	}
	if calls := engine.Calls(); calls != 2 {
		t.Errorf("expected 2 model calls, got %d", calls)
	}
}

func TestWorker_TurboDisabled(t *testing.T) {
	engine := structurer.NewMock()
	engine.StructureFunc = func(ctx context.Context, jpeg []byte) (*structurer.Page, error) {
		return testPage(structurer.StatusNotStarted), nil
	}
	w := testWorker(t, engine, &fakeSink{})
	w.SetTurbo(false)

	w.process(context.Background(), Job{JPEG: []byte("jpeg")})
	res := w.process(context.Background(), Job{
		JPEG:        []byte("jpeg"),
		StatusOrder: []string{"COMPLETED"},
	})
	if res.Turbo {
		t.Error("turbo must not engage when disabled")
	}
}

func TestWorker_EngineFailureDoesNotSave(t *testing.T) {
	engine := structurer.NewMock()
	engine.StructureFunc = func(ctx context.Context, jpeg []byte) (*structurer.Page, error) {
		return nil, errors.New("model unavailable")
	}
	sink := &fakeSink{}
	w := testWorker(t, engine, sink)

	res := w.process(context.Background(), Job{JPEG: []byte("jpeg")})
	if res.Err == nil {
		t.Fatal("expected error from failing engine")
	}
	if sink.count() != 0 {
		t.Error("failed structuring must not reach the sink")
	}
	if w.cache.Page() != nil {
		t.Error("failed scan must not populate the cache")
	}
}

func TestWorker_SinkFailureKeepsCacheEmpty(t *testing.T) {
	engine := structurer.NewMock()
	engine.StructureFunc = func(ctx context.Context, jpeg []byte) (*structurer.Page, error) {
		return testPage(structurer.StatusNotStarted), nil
	}
	w := testWorker(t, engine, &fakeSink{err: errors.New("firestore down")})

	res := w.process(context.Background(), Job{JPEG: []byte("jpeg")})
	if res.Err == nil {
		t.Fatal("expected sink error to surface")
	}
	if w.cache.Page() != nil {
		t.Error("unsaved scan must not populate the cache")
	}
}

func TestWorker_RejectsConcurrentSubmission(t *testing.T) {
	release := make(chan struct{})
	engine := structurer.NewMock()
	engine.StructureFunc = func(ctx context.Context, jpeg []byte) (*structurer.Page, error) {
		<-release
		return testPage(structurer.StatusNotStarted), nil
	}
	w := testWorker(t, engine, &fakeSink{})

	done := make(chan Result, 2)
	w.OnDone = func(res Result) { done <- res }

	if !w.Submit(context.Background(), Job{JPEG: []byte("a")}) {
		t.Fatal("first submission should be accepted")
	}
	// Wait for the worker goroutine to mark itself busy
	deadline := time.After(2 * time.Second)
	for !w.InFlight() {
		select {
		case <-deadline:
			t.Fatal("worker never became busy")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if w.Submit(context.Background(), Job{JPEG: []byte("b")}) {
		t.Error("second submission must be rejected while the first runs")
	}

	close(release)
	select {
	case res := <-done:
		if res.Err != nil {
			t.Errorf("first submission failed: %v", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submission never completed")
	}
}
