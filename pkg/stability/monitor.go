package stability

import (
	"math"
	"sync"

	"taskcam/pkg/detect"
)

// State of the monitor's trigger cycle.
type State int

const (
	// Watching means the monitor is accumulating a stable run.
	Watching State = iota
	// Triggered means a capture fired and the same page is still in view.
	Triggered
)

// String returns a human-readable state name.
func (s State) String() string {
	if s == Triggered {
		return "triggered"
	}
	return "watching"
}

// Monitor watches successive detection sets and fires exactly one trigger
// per stable episode. It is safe for concurrent use; the capture loop
// steps it while the dashboard reads its snapshot.
type Monitor struct {
	mu  sync.RWMutex
	cfg Config

	window        [][]detect.Detection
	prev          []detect.Detection
	run           int
	state         State
	lastTriggered []detect.Detection
	cooldown      int
}

// Snapshot is a read-only view of the monitor for the dashboard.
type Snapshot struct {
	State        string `json:"state"`
	StableRun    int    `json:"stable_run"`
	StableFrames int    `json:"stable_frames"`
	WindowLen    int    `json:"window_len"`
	Cooldown     int    `json:"cooldown"`
}

// NewMonitor creates a monitor with the given configuration.
func NewMonitor(cfg Config) *Monitor {
	return &Monitor{cfg: cfg}
}

// Config returns the current configuration.
func (m *Monitor) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// SetConfig replaces the configuration and clears accumulated state,
// since runs counted under the old tolerances are no longer comparable.
func (m *Monitor) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.resetLocked()
	m.state = Watching
	m.lastTriggered = nil
}

// Step feeds one frame's detections into the monitor and reports whether
// a capture trigger fired on this frame.
func (m *Monitor) Step(dets []detect.Detection) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	dets = detect.FilterSymbols(dets, m.cfg.ConfidenceFloor)

	if m.cooldown > 0 {
		m.cooldown--
	}

	// No symbols at all: no page present. Always resets the episode so a
	// removed-and-re-presented page triggers again.
	if len(dets) == 0 {
		m.resetLocked()
		m.state = Watching
		m.lastTriggered = nil
		return false
	}

	m.window = append(m.window, dets)
	if len(m.window) > m.cfg.WindowSize {
		m.window = m.window[1:]
	}

	// Partial page: keep watching but do not accumulate a run.
	if len(dets) < m.cfg.MinSymbols {
		m.run = 0
		m.prev = dets
		return false
	}

	if m.state == Triggered {
		if m.lastTriggered != nil && matchSets(dets, m.lastTriggered, m.cfg.PositionTolerance) {
			// Same page still in view, suppress re-trigger
			m.prev = dets
			return false
		}
		// Scene changed materially, re-arm
		m.state = Watching
		m.lastTriggered = nil
		m.run = 1
		m.prev = dets
		return false
	}

	if m.prev != nil && matchSets(dets, m.prev, m.cfg.PositionTolerance) {
		m.run++
	} else {
		m.run = 1
	}
	m.prev = dets

	if m.run >= m.cfg.StableFrames && m.cooldown == 0 {
		m.state = Triggered
		m.lastTriggered = dets
		m.cooldown = m.cfg.CooldownFrames
		m.resetLocked()
		return true
	}

	return false
}

// Rearm returns the monitor to watching without waiting for a scene change.
// The scanner calls this after a failed submission so the user can simply
// hold the page in place to retry.
func (m *Monitor) Rearm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Watching
	m.lastTriggered = nil
	m.resetLocked()
}

// Snapshot returns the current monitor state for the dashboard.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		State:        m.state.String(),
		StableRun:    m.run,
		StableFrames: m.cfg.StableFrames,
		WindowLen:    len(m.window),
		Cooldown:     m.cooldown,
	}
}

// resetLocked clears the rolling window and run counter. Caller holds mu.
func (m *Monitor) resetLocked() {
	m.window = nil
	m.prev = nil
	m.run = 0
}

// matchSets reports whether two detection sets are near-identical: the same
// symbol count, with every symbol matched to one of the same class within
// tolerance pixels of its previous position.
func matchSets(cur, prev []detect.Detection, tolerance float64) bool {
	if len(cur) != len(prev) {
		return false
	}

	for _, c := range cur {
		cx, cy := c.Center()
		best := math.Inf(1)

		for _, p := range prev {
			if p.Class != c.Class {
				continue
			}
			px, py := p.Center()
			dist := math.Hypot(cx-px, cy-py)
			if dist < best {
				best = dist
			}
		}

		if best > tolerance {
			return false
		}
	}

	return true
}
