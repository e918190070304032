package stability

import (
	"image"
	"testing"

	"taskcam/pkg/detect"
)

// testConfig returns a config suitable for deterministic unit tests.
func testConfig(k int) Config {
	return Config{
		StableFrames:      k,
		WindowSize:        2 * k,
		ConfidenceFloor:   0.3,
		PositionTolerance: 30.0,
		MinSymbols:        1,
		CooldownFrames:    0,
	}
}

// page builds a detection set of n COMPLETED symbols stacked vertically.
func page(n int, conf float64) []detect.Detection {
	dets := make([]detect.Detection, n)
	for i := 0; i < n; i++ {
		y := 100 + i*80
		dets[i] = detect.Detection{
			Box:        image.Rect(50, y, 90, y+40),
			Class:      "COMPLETED",
			Confidence: conf,
		}
	}
	return dets
}

// shifted moves every symbol in the set by (dx, dy) pixels.
func shifted(dets []detect.Detection, dx, dy int) []detect.Detection {
	out := make([]detect.Detection, len(dets))
	for i, d := range dets {
		out[i] = d
		out[i].Box = d.Box.Add(image.Pt(dx, dy))
	}
	return out
}

func countTriggers(m *Monitor, frames [][]detect.Detection) int {
	triggers := 0
	for _, f := range frames {
		if m.Step(f) {
			triggers++
		}
	}
	return triggers
}

func TestMonitor_NeverTriggersUnderK(t *testing.T) {
	m := NewMonitor(testConfig(10))

	for i := 0; i < 9; i++ {
		if m.Step(page(4, 0.95)) {
			t.Fatalf("trigger fired on frame %d with only %d stable frames (K=10)", i+1, i+1)
		}
	}
}

func TestMonitor_ExactlyOneTriggerOnKthFrame(t *testing.T) {
	m := NewMonitor(testConfig(10))

	// 10 identical detection sets: one trigger, on the 10th frame, none after
	for i := 1; i <= 9; i++ {
		if m.Step(page(5, 0.95)) {
			t.Fatalf("premature trigger on frame %d", i)
		}
	}
	if !m.Step(page(5, 0.95)) {
		t.Fatal("expected trigger on the 10th stable frame")
	}
	for i := 11; i <= 30; i++ {
		if m.Step(page(5, 0.95)) {
			t.Errorf("duplicate trigger on frame %d while page unchanged", i)
		}
	}
}

func TestMonitor_ZeroDetectionsResetsWindow(t *testing.T) {
	m := NewMonitor(testConfig(5))

	for i := 0; i < 4; i++ {
		m.Step(page(3, 0.9))
	}
	m.Step(nil) // page removed

	// The run must restart: 4 more frames is not enough, the 5th is
	for i := 0; i < 4; i++ {
		if m.Step(page(3, 0.9)) {
			t.Fatalf("triggered on frame %d of the new run, reset did not happen", i+1)
		}
	}
	if !m.Step(page(3, 0.9)) {
		t.Error("expected trigger on the 5th frame of the fresh run")
	}
}

func TestMonitor_TwoStableRunsFireTwice(t *testing.T) {
	m := NewMonitor(testConfig(5))

	var frames [][]detect.Detection
	for i := 0; i < 5; i++ {
		frames = append(frames, page(4, 0.95))
	}
	frames = append(frames, nil) // empty frame between runs
	for i := 0; i < 5; i++ {
		frames = append(frames, page(4, 0.95))
	}

	if got := countTriggers(m, frames); got != 2 {
		t.Errorf("expected exactly 2 triggers (one per stable run), got %d", got)
	}
}

func TestMonitor_MovementBreaksRun(t *testing.T) {
	m := NewMonitor(testConfig(5))
	base := page(4, 0.95)

	m.Step(base)
	m.Step(base)
	m.Step(base)
	// Jump well past the 30px tolerance
	if m.Step(shifted(base, 100, 0)) {
		t.Fatal("trigger fired across a large position jump")
	}
	// Run restarted at the new position: needs 4 more matching frames
	for i := 0; i < 3; i++ {
		if m.Step(shifted(base, 100, 0)) {
			t.Fatalf("triggered too early after movement, frame %d", i+1)
		}
	}
	if !m.Step(shifted(base, 100, 0)) {
		t.Error("expected trigger once the moved page settled for K frames")
	}
}

func TestMonitor_SmallJitterWithinTolerance(t *testing.T) {
	m := NewMonitor(testConfig(5))
	base := page(4, 0.95)

	// Drift a few pixels per frame, always within the 30px tolerance
	triggered := false
	for i := 0; i < 5; i++ {
		if m.Step(shifted(base, i*3, i*2)) {
			triggered = true
		}
	}
	if !triggered {
		t.Error("small jitter within tolerance should still count as stable")
	}
}

func TestMonitor_LowConfidenceDiscardedAsNoise(t *testing.T) {
	m := NewMonitor(testConfig(3))

	// All detections below the floor behave like an empty frame
	for i := 0; i < 10; i++ {
		if m.Step(page(4, 0.1)) {
			t.Fatal("triggered on below-floor detections")
		}
	}
	if snap := m.Snapshot(); snap.StableRun != 0 {
		t.Errorf("expected run 0 for noise-only frames, got %d", snap.StableRun)
	}
}

func TestMonitor_SymbolCountChangeSuppressesThenRearms(t *testing.T) {
	m := NewMonitor(testConfig(3))

	for i := 0; i < 3; i++ {
		m.Step(page(4, 0.95))
	}
	if m.Snapshot().State != "triggered" {
		t.Fatal("expected triggered state after K stable frames")
	}

	// A new symbol appears (user ticked a box): material change, re-arm
	triggers := 0
	for i := 0; i < 3; i++ {
		if m.Step(page(5, 0.95)) {
			triggers++
		}
	}
	// Frame 1 of the new set re-arms (run=1), frames 2 and 3 extend to K=3
	if triggers != 1 {
		t.Errorf("expected exactly 1 trigger after the page changed, got %d", triggers)
	}
}

func TestMonitor_MinSymbolsBlocksPartialPage(t *testing.T) {
	cfg := testConfig(3)
	cfg.MinSymbols = 3
	m := NewMonitor(cfg)

	// Two symbols = page sliding into view, never a trigger
	for i := 0; i < 10; i++ {
		if m.Step(page(2, 0.95)) {
			t.Fatal("triggered on a partial page below min_symbols")
		}
	}
}

func TestMonitor_CooldownDelaysNextEpisode(t *testing.T) {
	cfg := testConfig(2)
	cfg.CooldownFrames = 100
	m := NewMonitor(cfg)

	m.Step(page(3, 0.9))
	if !m.Step(page(3, 0.9)) {
		t.Fatal("expected first trigger")
	}

	// New episode arrives while still cooling down
	m.Step(nil)
	for i := 0; i < 20; i++ {
		if m.Step(page(3, 0.9)) {
			t.Fatal("triggered during cooldown")
		}
	}
}

func TestMonitor_RearmAllowsRetryWithoutSceneChange(t *testing.T) {
	m := NewMonitor(testConfig(3))

	for i := 0; i < 3; i++ {
		m.Step(page(4, 0.95))
	}

	// Submission failed; the user keeps holding the page
	m.Rearm()

	triggers := 0
	for i := 0; i < 3; i++ {
		if m.Step(page(4, 0.95)) {
			triggers++
		}
	}
	if triggers != 1 {
		t.Errorf("expected 1 retry trigger after rearm, got %d", triggers)
	}
}

func TestMonitor_ClassSwapBreaksMatch(t *testing.T) {
	m := NewMonitor(testConfig(5))

	a := page(3, 0.95)
	b := page(3, 0.95)
	b[1].Class = "IN_PROGRESS" // same position, different symbol

	m.Step(a)
	m.Step(a)
	if m.Step(b) {
		t.Fatal("triggered across a class change")
	}
	if m.Snapshot().StableRun != 1 {
		t.Errorf("expected run restart on class change, got %d", m.Snapshot().StableRun)
	}
}
