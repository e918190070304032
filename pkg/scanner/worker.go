package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"taskcam/internal/log"
	"taskcam/pkg/structurer"
)

// Sink persists one structured scan. Returns the daily document ID.
type Sink interface {
	SaveDaily(ctx context.Context, scanID string, page *structurer.Page) (string, error)
}

// Job is one triggered scan handed to the worker.
type Job struct {
	JPEG []byte
	// StatusOrder is the detected symbol classes top to bottom, used for
	// the turbo path when the cached page has the same task count.
	StatusOrder []string
}

// Result reports how a submitted job ended.
type Result struct {
	ScanID  string
	DailyID string
	Turbo   bool
	Err     error
}

// Worker runs scan submissions off the capture loop, one at a time. A job
// arriving while another is in flight is rejected so the camera never
// queues up duplicate scans of the same page.
type Worker struct {
	engine structurer.Engine
	sink   Sink
	cache  *Cache
	logger *slog.Logger

	turbo    atomic.Bool
	inFlight atomic.Bool

	// OnDone is called after every submission, on the worker goroutine.
	// The scanner uses it to re-arm the stability monitor after failures.
	OnDone func(Result)

	// timeout bounds one full submission including the model call
	timeout time.Duration
}

// NewWorker wires the structuring engine and the persistence sink.
// Turbo mode starts enabled; it only applies when the cache has a page.
func NewWorker(engine structurer.Engine, sink Sink, cache *Cache) *Worker {
	w := &Worker{
		engine:  engine,
		sink:    sink,
		cache:   cache,
		logger:  log.With("component", "worker"),
		timeout: 2 * time.Minute,
	}
	w.turbo.Store(true)
	return w
}

// TurboEnabled reports whether the fast re-scan path is on.
func (w *Worker) TurboEnabled() bool { return w.turbo.Load() }

// SetTurbo toggles the fast re-scan path.
func (w *Worker) SetTurbo(on bool) { w.turbo.Store(on) }

// InFlight reports whether a submission is currently running.
func (w *Worker) InFlight() bool { return w.inFlight.Load() }

// Submit starts processing a job in the background. Returns false when a
// previous submission is still running.
func (w *Worker) Submit(ctx context.Context, job Job) bool {
	if !w.inFlight.CompareAndSwap(false, true) {
		w.logger.Debug("submission skipped, previous scan still in flight")
		return false
	}

	go func() {
		defer w.inFlight.Store(false)

		ctx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()

		res := w.process(ctx, job)
		if res.Err != nil {
			w.logger.Error("scan failed", "scan_id", res.ScanID, "error", res.Err)
		} else {
			w.logger.Info("scan saved", "scan_id", res.ScanID, "daily", res.DailyID, "turbo", res.Turbo)
		}

		if w.OnDone != nil {
			w.OnDone(res)
		}
	}()

	return true
}

// process runs one scan: turbo path when the cached page matches the
// detected symbol count, otherwise a full model call that refreshes the
// cache.
func (w *Worker) process(ctx context.Context, job Job) Result {
	res := Result{ScanID: uuid.New().String()}

	page := w.turboPage(job.StatusOrder)
	res.Turbo = page != nil

	if page == nil {
		start := time.Now()
		var err error
		page, err = w.engine.Structure(ctx, job.JPEG)
		if err != nil {
			res.Err = fmt.Errorf("structure page: %w", err)
			return res
		}
		w.logger.Debug("full scan", "tasks", len(page.Tasks), "latency_ms", time.Since(start).Milliseconds())
	}

	dailyID, err := w.sink.SaveDaily(ctx, res.ScanID, page)
	if err != nil {
		res.Err = fmt.Errorf("save scan: %w", err)
		return res
	}
	res.DailyID = dailyID

	if err := w.cache.Put(res.ScanID, page); err != nil {
		// The scan is saved; a stale cache just means the next scan
		// goes through the model again.
		w.logger.Warn("cache update failed", "error", err)
	}

	return res
}

// turboPage returns the cached page with the fresh symbol order applied,
// or nil when the turbo path does not apply.
func (w *Worker) turboPage(order []string) *structurer.Page {
	if !w.turbo.Load() || len(order) == 0 {
		return nil
	}

	page := w.cache.Page()
	if page == nil || len(page.Tasks) != len(order) {
		return nil
	}

	page.ApplyStatusOrder(order)
	return page
}
