// Package config loads taskcam configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Orientation modes for the incoming camera frame.
const (
	OrientationPhone     = "phone"     // rotate 90° clockwise (page filmed with a phone-style rig)
	OrientationLandscape = "landscape" // leave the frame as captured
)

// Config holds the full application configuration.
type Config struct {
	// Structuring service (Gemini)
	GeminiAPIKey string // empty enables the offline fallback engine
	GeminiModel  string

	// Persistence sink (Firestore)
	CredentialsPath string

	// Detector
	ModelPath string

	// Capture
	CameraIndex int
	Orientation string

	// Misc
	Timezone  string
	HTTPAddr  string
	StatePath string
	LogLevel  string
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		GeminiAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:     getEnv("TASKCAM_GEMINI_MODEL", "gemini-2.0-flash"),
		CredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
		ModelPath:       getEnv("TASKCAM_MODEL_PATH", "models/checkbox_yolov8.onnx"),
		CameraIndex:     getEnvInt("TASKCAM_CAMERA_INDEX", 0),
		Orientation:     getEnv("TASKCAM_ORIENTATION", OrientationPhone),
		Timezone:        getEnv("TASKCAM_TIMEZONE", "Asia/Bangkok"),
		HTTPAddr:        getEnv("TASKCAM_HTTP_ADDR", ":8080"),
		StatePath:       getEnv("TASKCAM_STATE_PATH", defaultStatePath()),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	if c.CredentialsPath == "" {
		return fmt.Errorf("FIREBASE_CREDENTIALS_PATH environment variable is required")
	}
	if _, err := os.Stat(c.CredentialsPath); err != nil {
		return fmt.Errorf("credentials file not found: %s", c.CredentialsPath)
	}
	if c.Orientation != OrientationPhone && c.Orientation != OrientationLandscape {
		return fmt.Errorf("TASKCAM_ORIENTATION must be %q or %q, got %q",
			OrientationPhone, OrientationLandscape, c.Orientation)
	}
	return nil
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskcam/lastscan.json"
	}
	return home + "/.taskcam/lastscan.json"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}
