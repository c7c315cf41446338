package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	APIToken string `env:"API_TOKEN"` // puste = brak autoryzacji

	LogDirectory string `env:"LOG_DIR" envDefault:"./logs"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	DatabasePath string `env:"DB_PATH" envDefault:"./data/faceshield.db"`

	ImageDirectory      string        `env:"IMAGE_DIR" envDefault:"./images"`
	SampleLimit         int           `env:"SAMPLE_LIMIT" envDefault:"7"`
	SampleFlushInterval time.Duration `env:"SAMPLE_FLUSH_INTERVAL" envDefault:"30s"`
	SampleInterval      int           `env:"SAMPLE_INTERVAL" envDefault:"25"`  // minimalny odstęp klatek między próbkami
	PreviewInterval     int           `env:"PREVIEW_INTERVAL" envDefault:"15"` // co którą klatkę wysyłać do podglądu
	LocalPreview        bool          `env:"LOCAL_PREVIEW" envDefault:"false"`

	DetectorBackend string `env:"DETECTOR_BACKEND" envDefault:"opencv"`
	Device          string `env:"DEVICE" envDefault:"cpu"`
	ONNXRuntimeLib  string `env:"ONNXRUNTIME_LIB"`
	ModelClasses    int    `env:"MODEL_CLASSES" envDefault:"1"`

	ObserverBuffer int     `env:"OBSERVER_BUFFER" envDefault:"64"`
	ProgressRate   float64 `env:"PROGRESS_RATE" envDefault:"4"`

	OTELEndpoint string `env:"OTEL_ENDPOINT"`

	Roots    Roots
	Defaults JobDefaults
}

// Roots confine the paths an API request may name. Relative request paths
// are resolved inside them.
type Roots struct {
	Input  string `env:"INPUT_DIR" envDefault:"./media/input"`
	Output string `env:"OUTPUT_DIR" envDefault:"./media/output"`
	Model  string `env:"MODEL_DIR" envDefault:"./models"`
}

// JobDefaults fill in whatever a run request leaves out.
type JobDefaults struct {
	ModelPath   string  `env:"DEFAULT_MODEL_PATH" envDefault:"./models/yolov8l_face.onnx"`
	OutputPath  string  `env:"DEFAULT_OUTPUT_PATH" envDefault:"faces_blurred.mp4"`
	Confidence  float64 `env:"DEFAULT_CONFIDENCE" envDefault:"0.20"`
	IoU         float64 `env:"DEFAULT_IOU" envDefault:"0.45"`
	ImageSize   int     `env:"DEFAULT_IMAGE_SIZE" envDefault:"1280"`
	BlurKernel  int     `env:"DEFAULT_BLUR_KERNEL" envDefault:"75"`
	Precision   string  `env:"DEFAULT_PRECISION" envDefault:"half"`
	Preview     bool    `env:"DEFAULT_PREVIEW" envDefault:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are skipped;
// variables already present in the environment win.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	for _, dir := range []*string{&cfg.Roots.Input, &cfg.Roots.Output, &cfg.Roots.Model} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", *dir, err)
		}
		*dir = abs
	}
	cfg.LogDirectory = filepath.Clean(cfg.LogDirectory)
	cfg.ImageDirectory = filepath.Clean(cfg.ImageDirectory)
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DetectorBackend {
	case "opencv", "onnxruntime":
	default:
		return fmt.Errorf("DETECTOR_BACKEND: unknown backend %q", c.DetectorBackend)
	}
	switch c.Device {
	case "cpu", "cuda":
	default:
		return fmt.Errorf("DEVICE: unknown device %q", c.Device)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT: out of range: %d", c.Port)
	}
	if c.ModelClasses < 1 {
		return fmt.Errorf("MODEL_CLASSES: must be at least 1")
	}
	if c.Roots.Input == "" || c.Roots.Output == "" || c.Roots.Model == "" {
		return fmt.Errorf("INPUT_DIR, OUTPUT_DIR and MODEL_DIR must be set")
	}
	if c.SampleLimit < 0 {
		return fmt.Errorf("SAMPLE_LIMIT: must not be negative, got %d", c.SampleLimit)
	}
	if c.SampleFlushInterval <= 0 {
		return fmt.Errorf("SAMPLE_FLUSH_INTERVAL: must be positive, got %s", c.SampleFlushInterval)
	}
	if c.ObserverBuffer < 1 {
		c.ObserverBuffer = 1
	}
	if c.PreviewInterval < 1 {
		c.PreviewInterval = 1
	}
	if c.SampleInterval < 1 {
		c.SampleInterval = 1
	}
	return nil
}
