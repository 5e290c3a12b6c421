package config

import (
	"os"
	"strconv"
)

type Config struct {
	Camera   CameraConfig
	Vision   VisionConfig
	Liveness LivenessConfig
	Match    MatchConfig
	Gallery  GalleryConfig
	Ledger   LedgerConfig
	Database DatabaseConfig
}

type CameraConfig struct {
	Device string // V4L2 device path (e.g., /dev/video0)
	Width  int    // requested frame width
	Height int    // requested frame height
}

type VisionConfig struct {
	ModelsDir       string // directory with the dlib model files
	DownscaleFactor int    // detection runs on a 1/N scaled frame
	DetectEvery     int    // recompute detection every Nth frame
}

type LivenessConfig struct {
	EARThreshold    float64 // eye aspect ratio below this counts as closed
	MinClosedFrames int     // consecutive closed frames that make a blink
	BlinksRequired  int     // blinks needed to pass the challenge
}

type MatchConfig struct {
	Tolerance float64 // max Euclidean distance for an accepted match
}

type GalleryConfig struct {
	Path string // gallery JSON file, replaced atomically on every change
}

type LedgerConfig struct {
	Dir string // directory for the per-day attendance CSV files
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL for the roster store
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Camera: CameraConfig{
			Device: envString("CAMERA_DEVICE", "/dev/video0"),
			Width:  envInt("CAMERA_WIDTH", 640),
			Height: envInt("CAMERA_HEIGHT", 480),
		},
		Vision: VisionConfig{
			ModelsDir:       envString("FACE_MODELS_DIR", "models"),
			DownscaleFactor: envInt("DETECT_DOWNSCALE", 4),
			DetectEvery:     envInt("DETECT_EVERY", 5),
		},
		Liveness: LivenessConfig{
			EARThreshold:    envFloat("EAR_THRESHOLD", 0.22),
			MinClosedFrames: envInt("BLINK_MIN_FRAMES", 3),
			BlinksRequired:  envInt("BLINKS_REQUIRED", 2),
		},
		Match: MatchConfig{
			Tolerance: envFloat("MATCH_TOLERANCE", 0.6),
		},
		Gallery: GalleryConfig{
			Path: envString("GALLERY_PATH", "known_faces.json"),
		},
		Ledger: LedgerConfig{
			Dir: envString("LEDGER_DIR", "attendance_reports"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
	}
}
