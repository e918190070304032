// Package scanner runs the capture loop: camera frames through symbol
// detection and the stability monitor, handing stable pages to the
// submission worker.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"taskcam/internal/log"
	"taskcam/pkg/detect"
	"taskcam/pkg/stability"
)

// Orientation values for the physical camera mount.
const (
	OrientationPhone     = "phone"     // portrait card, frame rotated 90 CW
	OrientationLandscape = "landscape" // no rotation
)

// Config holds the capture loop settings.
type Config struct {
	CameraIndex int
	Orientation string
	Preview     bool // show the HUD window

	// ConfidenceFloor filters detections before ordering and display.
	ConfidenceFloor float64
}

// DefaultConfig returns the capture settings for a phone-mounted webcam.
func DefaultConfig() Config {
	return Config{
		CameraIndex:     0,
		Orientation:     OrientationPhone,
		Preview:         true,
		ConfidenceFloor: 0.3,
	}
}

// Scanner owns the frame loop. One frame at a time: capture, rotate,
// detect, feed the stability monitor, submit on trigger.
type Scanner struct {
	cfg      Config
	detector detect.Detector
	monitor  *stability.Monitor
	worker   *Worker
	logger   *slog.Logger

	mu         sync.RWMutex
	latestJPEG []byte
	lastDets   []detect.Detection
	fps        float64
	paused     bool
}

// New wires the detector, stability monitor and submission worker into a
// scanner. The worker's OnDone is set here so failed submissions re-arm
// the monitor for a retry without requiring a scene change.
func New(cfg Config, detector detect.Detector, monitor *stability.Monitor, worker *Worker) *Scanner {
	s := &Scanner{
		cfg:      cfg,
		detector: detector,
		monitor:  monitor,
		worker:   worker,
		logger:   log.With("component", "scanner"),
	}
	worker.OnDone = func(res Result) {
		if res.Err != nil {
			monitor.Rearm()
		}
	}
	return s
}

// Run opens the camera and processes frames until ctx is cancelled or the
// preview window is closed with 'q'. A camera that cannot be opened is a
// fatal error; a frame that cannot be read is retried.
func (s *Scanner) Run(ctx context.Context) error {
	cam, err := gocv.OpenVideoCapture(s.cfg.CameraIndex)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", s.cfg.CameraIndex, err)
	}
	defer cam.Close()

	var window *gocv.Window
	if s.cfg.Preview {
		window = gocv.NewWindow("taskcam")
		defer window.Close()
	}

	frame := gocv.NewMat()
	defer frame.Close()
	rotated := gocv.NewMat()
	defer rotated.Close()

	s.logger.Info("capture started",
		"camera", s.cfg.CameraIndex, "orientation", s.cfg.Orientation, "preview", s.cfg.Preview)

	lastFrame := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if ok := cam.Read(&frame); !ok || frame.Empty() {
			s.logger.Warn("frame read failed, retrying")
			time.Sleep(100 * time.Millisecond)
			continue
		}

		img := frame
		if s.cfg.Orientation == OrientationPhone {
			gocv.Rotate(frame, &rotated, gocv.Rotate90Clockwise)
			img = rotated
		}

		now := time.Now()
		fps := 1.0 / now.Sub(lastFrame).Seconds()
		lastFrame = now

		if s.isPaused() {
			if !s.pumpPreview(window, &img, nil, fps) {
				return nil
			}
			continue
		}

		dets, err := s.detector.Detect(img)
		if err != nil {
			s.logger.Warn("detection failed", "error", err)
			continue
		}
		symbols := detect.FilterSymbols(dets, s.cfg.ConfidenceFloor)

		if s.monitor.Step(dets) {
			s.submit(ctx, img, symbols)
		}

		s.storeFrame(&img, dets, fps)

		if !s.pumpPreview(window, &img, dets, fps) {
			return nil
		}
	}
}

// submit encodes the stable frame and hands it to the worker.
func (s *Scanner) submit(ctx context.Context, img gocv.Mat, symbols []detect.Detection) {
	buf, err := gocv.IMEncode(".jpg", img)
	if err != nil {
		s.logger.Error("frame encode failed", "error", err)
		s.monitor.Rearm()
		return
	}
	defer buf.Close()

	jpeg := make([]byte, len(buf.GetBytes()))
	copy(jpeg, buf.GetBytes())

	order := detect.StatusOrder(symbols, s.cfg.ConfidenceFloor)
	s.logger.Info("stable page detected", "symbols", len(order))

	if !s.worker.Submit(ctx, Job{JPEG: jpeg, StatusOrder: order}) {
		// Still busy with the previous page; keep the monitor armed so
		// this page triggers again once the worker is free.
		s.monitor.Rearm()
	}
}

// pumpPreview draws the HUD and handles keys. Returns false on quit.
func (s *Scanner) pumpPreview(window *gocv.Window, img *gocv.Mat, dets []detect.Detection, fps float64) bool {
	if window == nil {
		return true
	}

	drawHUD(img, dets, s.monitor.Snapshot(), s.worker.TurboEnabled(), fps)
	window.IMShow(*img)

	switch window.WaitKey(1) {
	case 'q':
		s.logger.Info("quit requested")
		return false
	case 's':
		// Manual scan: bypass stability and submit the current frame
		s.logger.Info("manual scan requested")
		s.submit(context.Background(), *img, detect.FilterSymbols(dets, s.cfg.ConfidenceFloor))
	case 't':
		on := !s.worker.TurboEnabled()
		s.worker.SetTurbo(on)
		s.logger.Info("turbo toggled", "enabled", on)
	case 'p':
		s.togglePause()
	}
	return true
}

// storeFrame keeps the latest annotated-free frame for the dashboard.
func (s *Scanner) storeFrame(img *gocv.Mat, dets []detect.Detection, fps float64) {
	buf, err := gocv.IMEncode(".jpg", *img)
	if err != nil {
		return
	}
	defer buf.Close()

	jpeg := make([]byte, len(buf.GetBytes()))
	copy(jpeg, buf.GetBytes())

	s.mu.Lock()
	s.latestJPEG = jpeg
	s.lastDets = dets
	s.fps = fps
	s.mu.Unlock()
}

// ForceScan submits the latest captured frame, bypassing the stability
// monitor (dashboard control).
func (s *Scanner) ForceScan(ctx context.Context) error {
	s.mu.RLock()
	jpeg := s.latestJPEG
	dets := s.lastDets
	s.mu.RUnlock()

	if len(jpeg) == 0 {
		return fmt.Errorf("no frame captured yet")
	}

	order := detect.StatusOrder(detect.FilterSymbols(dets, s.cfg.ConfidenceFloor), s.cfg.ConfidenceFloor)
	if !s.worker.Submit(ctx, Job{JPEG: jpeg, StatusOrder: order}) {
		return fmt.Errorf("scan already in flight")
	}
	s.logger.Info("forced scan submitted", "symbols", len(order))
	return nil
}

// LatestFrame returns the most recent frame as JPEG, or nil before the
// first capture.
func (s *Scanner) LatestFrame() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestJPEG
}

// Status summarises the loop state for the dashboard.
func (s *Scanner) Status() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"monitor":    s.monitor.Snapshot(),
		"detections": len(s.lastDets),
		"fps":        s.fps,
		"paused":     s.paused,
		"turbo":      s.worker.TurboEnabled(),
		"in_flight":  s.worker.InFlight(),
	}
}

func (s *Scanner) isPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

func (s *Scanner) togglePause() {
	s.mu.Lock()
	s.paused = !s.paused
	paused := s.paused
	s.mu.Unlock()
	s.logger.Info("pause toggled", "paused", paused)
}

// SetPaused sets the pause state (dashboard control).
func (s *Scanner) SetPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
}
