// Package config loads go-mimic settings from an INI file with
// environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/teslashibe/go-mimic/pkg/reference"
	"github.com/teslashibe/go-mimic/pkg/report"
	"github.com/teslashibe/go-mimic/pkg/scoring"
	"github.com/teslashibe/go-mimic/pkg/session"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// Environment overrides.
const (
	EnvConfig     = "MIMIC_CONFIG"
	EnvMQTTBroker = "MIMIC_MQTT_BROKER"
	EnvHTTPPort   = "MIMIC_HTTP_PORT"
)

// DefaultPath is the config file used when MIMIC_CONFIG is unset.
const DefaultPath = "mimic.ini"

//go:embed default.ini
var defaultINI []byte

// Config is the full process configuration.
type Config struct {
	Session session.Config
	Runner  RunnerConfig
	Server  ServerConfig
	MQTT    MQTTConfig
	Mocopi  MocopiConfig
	Store   StoreConfig

	// Path is the user file that was loaded, empty when only defaults apply.
	Path string
}

// RunnerConfig selects the reference clip and tick rate.
type RunnerConfig struct {
	RateHz  float64
	Clip    string
	ClipDir string
	Cursor  reference.CursorOptions
}

// Rate returns the tick period.
func (r RunnerConfig) Rate() time.Duration {
	if r.RateHz <= 0 {
		return time.Second / 60
	}
	return time.Duration(float64(time.Second) / r.RateHz)
}

// ServerConfig configures the dashboard.
type ServerConfig struct {
	Port      string
	StaticDir string
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string { return ":" + s.Port }

// MQTTConfig configures score publishing.
type MQTTConfig struct {
	Enabled bool
	report.MQTTConfig
}

// MocopiConfig configures the sensor inputs.
type MocopiConfig struct {
	Address     string
	FeedURL     string
	WorldSpace  bool
	RcvBuf      int
	LogInterval time.Duration
	MaxAge      time.Duration
}

// StoreConfig configures session persistence. Empty paths disable it.
type StoreConfig struct {
	Path  string
	Stats string
}

// file mirrors the INI layout.
type file struct {
	Session struct {
		Tolerance      int     `ini:"tolerance"`
		SampleInterval int     `ini:"sample_interval"`
		AutoEnd        bool    `ini:"auto_end"`
		RateHz         float64 `ini:"rate_hz"`
		Clip           string  `ini:"clip"`
		ClipDir        string  `ini:"clip_dir"`
		Loop           bool    `ini:"loop"`
		Speed          float64 `ini:"speed"`
	} `ini:"session"`

	Scoring struct {
		MaxAngleDeg          float64  `ini:"max_angle_deg"`
		MaxPositionError     float64  `ini:"max_position_error"`
		MaxVelocityError     float64  `ini:"max_velocity_error"`
		PoseMix              float64  `ini:"pose_mix"`
		PositionMix          float64  `ini:"position_mix"`
		RhythmMix            float64  `ini:"rhythm_mix"`
		HipsRelativePosition bool     `ini:"hips_relative_position"`
		HipsRelativeVelocity bool     `ini:"hips_relative_velocity"`
		VelocityMagnitude    bool     `ini:"velocity_magnitude"`
		EndEffectors         []string `ini:"end_effectors" delim:","`
	} `ini:"scoring"`

	Weights struct {
		EndEffector float64 `ini:"end_effector"`
		Hips        float64 `ini:"hips"`
		Head        float64 `ini:"head"`
		Default     float64 `ini:"default"`
	} `ini:"weights"`

	Server struct {
		Port      string `ini:"port"`
		StaticDir string `ini:"static_dir"`
	} `ini:"server"`

	MQTT struct {
		Enabled  bool          `ini:"enabled"`
		Broker   string        `ini:"broker"`
		ClientID string        `ini:"client_id"`
		Topic    string        `ini:"topic"`
		QoS      int           `ini:"qos"`
		Timeout  time.Duration `ini:"timeout"`
	} `ini:"mqtt"`

	Mocopi struct {
		Address     string        `ini:"address"`
		FeedURL     string        `ini:"feed_url"`
		WorldSpace  bool          `ini:"world_space"`
		RcvBuf      int           `ini:"rcvbuf"`
		LogInterval time.Duration `ini:"log_interval"`
		MaxAge      time.Duration `ini:"max_age"`
	} `ini:"mocopi"`

	Store struct {
		Path  string `ini:"path"`
		Stats string `ini:"stats"`
	} `ini:"store"`
}

var loadOptions = ini.LoadOptions{
	SkipUnrecognizableLines: true,
	IgnoreInlineComment:     false,
}

// Path returns the config file location from MIMIC_CONFIG or def.
func Path(def string) string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return def
}

// Default returns the built-in configuration with environment overrides.
func Default() (*Config, error) {
	return Load("")
}

// Load reads path over the built-in defaults. A missing file is not an
// error; only defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	sources := []interface{}{defaultINI}
	loaded := ""
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			sources = append(sources, path)
			loaded = path
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	f, err := ini.LoadSources(loadOptions, sources[0], sources[1:]...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return build(f, loaded)
}

// Parse reads INI data over the built-in defaults.
func Parse(data []byte) (*Config, error) {
	f, err := ini.LoadSources(loadOptions, defaultINI, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return build(f, "")
}

func build(f *ini.File, path string) (*Config, error) {
	var raw file
	if err := f.MapTo(&raw); err != nil {
		return nil, fmt.Errorf("failed to map config: %w", err)
	}

	ends := make([]skeleton.JointID, 0, len(raw.Scoring.EndEffectors))
	for _, name := range raw.Scoring.EndEffectors {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		j, ok := skeleton.ParseJoint(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown end effector %q", session.ErrInvalidConfig, name)
		}
		ends = append(ends, j)
	}

	cfg := &Config{
		Path: path,
		Session: session.Config{
			Tolerance:      raw.Session.Tolerance,
			SampleInterval: raw.Session.SampleInterval,
			AutoEnd:        raw.Session.AutoEnd,
			Scoring: scoring.Config{
				Weights: skeleton.Weights{
					EndEffector: raw.Weights.EndEffector,
					Hips:        raw.Weights.Hips,
					Head:        raw.Weights.Head,
					Default:     raw.Weights.Default,
				},
				EndEffectors:          ends,
				MaxAngleDeg:           raw.Scoring.MaxAngleDeg,
				MaxPositionError:      raw.Scoring.MaxPositionError,
				MaxVelocityError:      raw.Scoring.MaxVelocityError,
				PoseMix:               raw.Scoring.PoseMix,
				PositionMix:           raw.Scoring.PositionMix,
				RhythmMix:             raw.Scoring.RhythmMix,
				HipsRelativePosition:  raw.Scoring.HipsRelativePosition,
				HipsRelativeVelocity:  raw.Scoring.HipsRelativeVelocity,
				VelocityMagnitudeOnly: raw.Scoring.VelocityMagnitude,
			},
		},
		Runner: RunnerConfig{
			RateHz:  raw.Session.RateHz,
			Clip:    raw.Session.Clip,
			ClipDir: raw.Session.ClipDir,
			Cursor:  reference.CursorOptions{Loop: raw.Session.Loop, Speed: raw.Session.Speed},
		},
		Server: ServerConfig{
			Port:      raw.Server.Port,
			StaticDir: raw.Server.StaticDir,
		},
		MQTT: MQTTConfig{
			Enabled: raw.MQTT.Enabled,
			MQTTConfig: report.MQTTConfig{
				Broker:   raw.MQTT.Broker,
				ClientID: raw.MQTT.ClientID,
				Topic:    raw.MQTT.Topic,
				QoS:      byte(raw.MQTT.QoS),
				Timeout:  raw.MQTT.Timeout,
			},
		},
		Mocopi: MocopiConfig{
			Address:     raw.Mocopi.Address,
			FeedURL:     raw.Mocopi.FeedURL,
			WorldSpace:  raw.Mocopi.WorldSpace,
			RcvBuf:      raw.Mocopi.RcvBuf,
			LogInterval: raw.Mocopi.LogInterval,
			MaxAge:      raw.Mocopi.MaxAge,
		},
		Store: StoreConfig{
			Path:  raw.Store.Path,
			Stats: raw.Store.Stats,
		},
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets the environment override the broker and HTTP port. Setting
// a broker also enables publishing.
func (c *Config) applyEnv() {
	if b := os.Getenv(EnvMQTTBroker); b != "" {
		c.MQTT.Broker = b
		c.MQTT.Enabled = true
	}
	if p := os.Getenv(EnvHTTPPort); p != "" {
		c.Server.Port = p
	}
}

// Validate checks the settings the file cannot express as types.
func (c *Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if c.Runner.RateHz <= 0 {
		return fmt.Errorf("%w: rate_hz must be > 0, got %v", session.ErrInvalidConfig, c.Runner.RateHz)
	}
	if c.Runner.Cursor.Speed <= 0 {
		return fmt.Errorf("%w: speed must be > 0, got %v", session.ErrInvalidConfig, c.Runner.Cursor.Speed)
	}
	if c.Mocopi.MaxAge < 0 {
		return fmt.Errorf("%w: max_age must be >= 0, got %v", session.ErrInvalidConfig, c.Mocopi.MaxAge)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("%w: qos must be 0, 1 or 2, got %d", session.ErrInvalidConfig, c.MQTT.QoS)
	}
	return nil
}
