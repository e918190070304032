// Package stability decides when the camera frames a motionless,
// fully visible page and fires a single capture trigger per stable episode.
package stability

// Config holds all tunable parameters for the stability monitor
type Config struct {
	// Debounce
	StableFrames int `json:"stable_frames"` // Consecutive near-identical frames required to trigger
	WindowSize   int `json:"window_size"`   // Detection sets retained for inspection

	// Matching
	ConfidenceFloor   float64 `json:"confidence_floor"`   // Detections below this are discarded as noise
	PositionTolerance float64 `json:"position_tolerance"` // Max symbol center drift between frames (pixels)

	// Page validity
	MinSymbols int `json:"min_symbols"` // Fewer symbols than this is treated as a partial page

	// Re-trigger guard
	CooldownFrames int `json:"cooldown_frames"` // Frames to hold off after a trigger
}

// DefaultConfig returns the recommended configuration for handheld pages
func DefaultConfig() Config {
	return Config{
		StableFrames:      15, // ~0.5s at 30fps
		WindowSize:        20,
		ConfidenceFloor:   0.3,
		PositionTolerance: 30.0,
		MinSymbols:        3,
		CooldownFrames:    60,
	}
}

// PatientConfig waits longer before triggering, for shaky mounts
func PatientConfig() Config {
	cfg := DefaultConfig()
	cfg.StableFrames = 25
	cfg.WindowSize = 30
	cfg.PositionTolerance = 40.0
	cfg.CooldownFrames = 120
	return cfg
}

// ResponsiveConfig triggers quickly, for tripod-mounted cameras
func ResponsiveConfig() Config {
	cfg := DefaultConfig()
	cfg.StableFrames = 8
	cfg.PositionTolerance = 20.0
	cfg.CooldownFrames = 30
	return cfg
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.StableFrames < 1 {
		errors = append(errors, "stable_frames must be at least 1")
	}
	if c.WindowSize < c.StableFrames {
		errors = append(errors, "window_size must be at least stable_frames")
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		errors = append(errors, "confidence_floor must be between 0 and 1")
	}
	if c.PositionTolerance <= 0 {
		errors = append(errors, "position_tolerance must be positive")
	}
	if c.MinSymbols < 1 {
		errors = append(errors, "min_symbols must be at least 1")
	}
	if c.CooldownFrames < 0 {
		errors = append(errors, "cooldown_frames must not be negative")
	}

	return errors
}
