package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// EnvPrefix prefixes every environment override, e.g.
// FACEWATCH_RECOGNITION_GRACE_PERIOD=20s.
const EnvPrefix = "FACEWATCH"

type Config struct {
	Recognition RecognitionConfig `mapstructure:"recognition" yaml:"recognition"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store"`
	Detector    DetectorConfig    `mapstructure:"detector" yaml:"detector"`
	Stream      StreamConfig      `mapstructure:"stream" yaml:"stream"`
	Sightings   SightingsConfig   `mapstructure:"sightings" yaml:"sightings"`
	Thumbnails  ThumbnailsConfig  `mapstructure:"thumbnails" yaml:"thumbnails"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// RecognitionConfig holds the decision thresholds.
type RecognitionConfig struct {
	RecognizeExisting      float64       `mapstructure:"recognize_existing" yaml:"recognize_existing"` // relabel a matched track above this
	RecognizeNew           float64       `mapstructure:"recognize_new" yaml:"recognize_new"`           // label a new track above this
	Reject                 float64       `mapstructure:"reject" yaml:"reject"`                         // count toward the unrecognized streak below this
	UnknownPromoteStreak   int           `mapstructure:"unknown_promote_streak" yaml:"unknown_promote_streak"`
	GracePeriod            time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
	IOUMatch               float64       `mapstructure:"iou_match" yaml:"iou_match"`
	UnknownMergeSimilarity float64       `mapstructure:"unknown_merge_similarity" yaml:"unknown_merge_similarity"`
	Association            string        `mapstructure:"association" yaml:"association"` // greedy or best
}

type StoreConfig struct {
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"` // empty keeps the index in memory
	Dim     int    `mapstructure:"dim" yaml:"dim"`
}

type DetectorConfig struct {
	URL         string        `mapstructure:"url" yaml:"url"` // embedding service base URL
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MinFaceSize int           `mapstructure:"min_face_size" yaml:"min_face_size"` // boxes not wider and taller than this are dropped
}

// SourceConfig is one camera.
type SourceConfig struct {
	ID  string `mapstructure:"id" yaml:"id"`
	URL string `mapstructure:"url" yaml:"url"` // JPEG snapshot endpoint
}

type StreamConfig struct {
	Sources         []SourceConfig `mapstructure:"sources" yaml:"sources"`
	PollInterval    time.Duration  `mapstructure:"poll_interval" yaml:"poll_interval"`
	RetryDelay      time.Duration  `mapstructure:"retry_delay" yaml:"retry_delay"`
	MaxReadFailures int            `mapstructure:"max_read_failures" yaml:"max_read_failures"`
	ProcessEvery    int            `mapstructure:"process_every" yaml:"process_every"`
	Scale           float64        `mapstructure:"scale" yaml:"scale"` // detection runs on frames resized by this factor
	SaveInterval    time.Duration  `mapstructure:"save_interval" yaml:"save_interval"`
}

type SightingsConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir            string `mapstructure:"dir" yaml:"dir"`
	MaxPerIdentity int    `mapstructure:"max_per_identity" yaml:"max_per_identity"`
}

type ThumbnailsConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir            string        `mapstructure:"dir" yaml:"dir"`
	Padding        int           `mapstructure:"padding" yaml:"padding"`
	UpdateInterval time.Duration `mapstructure:"update_interval" yaml:"update_interval"`
	Quality        int           `mapstructure:"quality" yaml:"quality"`
	DedupeDistance int           `mapstructure:"dedupe_distance" yaml:"dedupe_distance"` // dHash bits; negative disables
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"` // empty disables the ops endpoint
}

// Load builds the configuration from the embedded defaults, the optional
// file at path and FACEWATCH_* environment variables, in increasing order of
// precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultsYAML)); err != nil {
		// Embedded file, only fails if the binary was built from a broken tree.
		panic("failed to parse embedded defaults.yaml: " + err.Error())
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the embedded defaults without reading files or the
// environment.
func Default() *Config {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultsYAML)); err != nil {
		panic("failed to parse embedded defaults.yaml: " + err.Error())
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("failed to decode embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Recognition.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Store.Dim <= 0 {
		errs = append(errs, fmt.Errorf("store.dim must be positive, got %d", c.Store.Dim))
	}
	if c.Detector.MinFaceSize < 0 {
		errs = append(errs, fmt.Errorf("detector.min_face_size must not be negative, got %d", c.Detector.MinFaceSize))
	}
	if c.Stream.MaxReadFailures < 0 {
		errs = append(errs, fmt.Errorf("stream.max_read_failures must not be negative, got %d", c.Stream.MaxReadFailures))
	}
	if c.Stream.ProcessEvery < 1 {
		errs = append(errs, fmt.Errorf("stream.process_every must be at least 1, got %d", c.Stream.ProcessEvery))
	}
	if c.Stream.Scale <= 0 || c.Stream.Scale > 1 {
		errs = append(errs, fmt.Errorf("stream.scale must be in (0, 1], got %v", c.Stream.Scale))
	}
	if c.Stream.SaveInterval <= 0 {
		errs = append(errs, fmt.Errorf("stream.save_interval must be positive, got %v", c.Stream.SaveInterval))
	}
	seen := make(map[string]bool)
	for i, src := range c.Stream.Sources {
		if src.ID == "" || src.URL == "" {
			errs = append(errs, fmt.Errorf("stream.sources[%d] needs both id and url", i))
		}
		if seen[src.ID] {
			errs = append(errs, fmt.Errorf("stream.sources[%d]: duplicate id %q", i, src.ID))
		}
		seen[src.ID] = true
	}
	if c.Thumbnails.Quality < 1 || c.Thumbnails.Quality > 100 {
		errs = append(errs, fmt.Errorf("thumbnails.quality must be in [1, 100], got %d", c.Thumbnails.Quality))
	}
	return errors.Join(errs...)
}

// Validate checks the thresholds are ordered and in range.
func (r RecognitionConfig) Validate() error {
	var errs []error
	if r.Reject < 0 || r.Reject > r.RecognizeNew || r.RecognizeNew > r.RecognizeExisting || r.RecognizeExisting > 1 {
		errs = append(errs, fmt.Errorf(
			"recognition thresholds must satisfy 0 <= reject (%v) <= recognize_new (%v) <= recognize_existing (%v) <= 1",
			r.Reject, r.RecognizeNew, r.RecognizeExisting))
	}
	if r.IOUMatch <= 0 || r.IOUMatch > 1 {
		errs = append(errs, fmt.Errorf("recognition.iou_match must be in (0, 1], got %v", r.IOUMatch))
	}
	if r.UnknownPromoteStreak < 1 {
		errs = append(errs, fmt.Errorf("recognition.unknown_promote_streak must be at least 1, got %d", r.UnknownPromoteStreak))
	}
	if r.GracePeriod <= 0 {
		errs = append(errs, fmt.Errorf("recognition.grace_period must be positive, got %v", r.GracePeriod))
	}
	if r.UnknownMergeSimilarity <= 0 || r.UnknownMergeSimilarity > 1 {
		errs = append(errs, fmt.Errorf("recognition.unknown_merge_similarity must be in (0, 1], got %v", r.UnknownMergeSimilarity))
	}
	switch r.Association {
	case "greedy", "best":
	default:
		errs = append(errs, fmt.Errorf("recognition.association must be greedy or best, got %q", r.Association))
	}
	return errors.Join(errs...)
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
