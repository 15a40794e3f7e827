package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gdamore/tcell/v2"
	"gopkg.in/yaml.v3"
)

const (
	AppName        = "radiobox"
	AppTagline     = "Network radio appliance"
	AppDescription = "Plays internet radio stations on a small networked device"
	AppProjectURL  = "https://github.com/glebovdev/radiobox"

	ConfigDir        = ".config/radiobox"
	ConfigFileName   = "config.yml"
	StationsFileName = "stations.yml"

	DefaultVolume = 0.05
	MinVolume     = 0.0
	MaxVolume     = 1.0
	VolumeStep    = 0.02

	DefaultListen     = ":8080"
	DefaultProbeURL   = "http://connectivitycheck.gstatic.com/generate_204"
	DefaultVisualizer = "bars"
)

// ClampVolume ensures volume is within the valid range [0, 1].
func ClampVolume(volume float64) float64 {
	if volume < MinVolume || math.IsNaN(volume) {
		return MinVolume
	}
	if volume > MaxVolume {
		return MaxVolume
	}
	return volume
}

// VisualizerStyles lists the band renderers the front panel knows, in cycle order.
var VisualizerStyles = []string{"bars", "mirror"}

// ValidVisualizer reports whether name is one of VisualizerStyles.
func ValidVisualizer(name string) bool {
	return slices.Contains(VisualizerStyles, name)
}

// AppVersion can be overridden at build time using ldflags:
// go build -ldflags "-X github.com/glebovdev/radiobox/internal/config.AppVersion=1.0.0"
var AppVersion = "dev"

type Theme struct {
	Background  string `yaml:"background"`
	Foreground  string `yaml:"foreground"`
	Borders     string `yaml:"borders"`
	Highlight   string `yaml:"highlight"`
	MutedVolume string `yaml:"muted_volume"`
	Warning     string `yaml:"warning"`
	Bands       string `yaml:"bands"`
}

// Playback holds the stream start-up timings.
type Playback struct {
	SettleDelay      time.Duration `yaml:"settle_delay"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	StartTimeout     time.Duration `yaml:"start_timeout"`
	PrebufferTimeout time.Duration `yaml:"prebuffer_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	BufferBytes      int           `yaml:"buffer_bytes"`
	PrebufferPercent int           `yaml:"prebuffer_percent"`
}

// Recovery holds the network recovery timings.
type Recovery struct {
	CheckInterval   time.Duration `yaml:"check_interval"`
	AutoInterval    time.Duration `yaml:"auto_interval"`
	AutoChecks      int           `yaml:"auto_checks"`
	ManualWindow    time.Duration `yaml:"manual_window"`
	RebootCountdown int           `yaml:"reboot_countdown"`
	ProbeURL        string        `yaml:"probe_url"`
	ProbeInterval   time.Duration `yaml:"probe_interval"`
}

type Stations struct {
	Max  int    `yaml:"max"`
	File string `yaml:"file"`
}

type Web struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type Config struct {
	Volume      float64  `yaml:"volume"`
	LastStation string   `yaml:"last_station"`
	Visualizer  string   `yaml:"visualizer"`
	LogLevel    string   `yaml:"log_level"`
	QueueSize   int      `yaml:"queue_size"`
	Playback    Playback `yaml:"playback"`
	Recovery    Recovery `yaml:"recovery"`
	Stations    Stations `yaml:"stations"`
	Web         Web      `yaml:"web"`
	Theme       Theme    `yaml:"theme"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(home, ConfigDir, ConfigFileName)
	return configPath, nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.normalize()

	return cfg, nil
}

// normalize replaces out-of-range values with their defaults.
func (c *Config) normalize() {
	d := DefaultConfig()

	c.Volume = ClampVolume(c.Volume)
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if !ValidVisualizer(c.Visualizer) {
		c.Visualizer = d.Visualizer
	}

	p := &c.Playback
	positiveDuration(&p.SettleDelay, d.Playback.SettleDelay)
	positiveDuration(&p.ConnectTimeout, d.Playback.ConnectTimeout)
	positiveDuration(&p.StartTimeout, d.Playback.StartTimeout)
	positiveDuration(&p.PrebufferTimeout, d.Playback.PrebufferTimeout)
	positiveDuration(&p.ReadTimeout, d.Playback.ReadTimeout)
	if p.BufferBytes <= 0 {
		p.BufferBytes = d.Playback.BufferBytes
	}
	if p.PrebufferPercent <= 0 || p.PrebufferPercent > 100 {
		p.PrebufferPercent = d.Playback.PrebufferPercent
	}

	r := &c.Recovery
	positiveDuration(&r.CheckInterval, d.Recovery.CheckInterval)
	positiveDuration(&r.AutoInterval, d.Recovery.AutoInterval)
	positiveDuration(&r.ManualWindow, d.Recovery.ManualWindow)
	positiveDuration(&r.ProbeInterval, d.Recovery.ProbeInterval)
	if r.AutoChecks <= 0 {
		r.AutoChecks = d.Recovery.AutoChecks
	}
	if r.RebootCountdown <= 0 {
		r.RebootCountdown = d.Recovery.RebootCountdown
	}
	if r.ProbeURL == "" {
		r.ProbeURL = d.Recovery.ProbeURL
	}

	if c.Stations.Max <= 0 {
		c.Stations.Max = d.Stations.Max
	}
	if c.Web.Listen == "" {
		c.Web.Listen = d.Web.Listen
	}
}

func positiveDuration(v *time.Duration, fallback time.Duration) {
	if *v <= 0 {
		*v = fallback
	}
}

// Save writes the configuration to disk atomically using temp file + rename.
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return writeFileAtomic(configPath, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}

	tmpPath = "" // Prevent defer from removing the final file
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Volume:      DefaultVolume,
		LastStation: "",
		Visualizer:  DefaultVisualizer,
		LogLevel:    "info",
		QueueSize:   10,
		Playback: Playback{
			SettleDelay:      time.Second,
			ConnectTimeout:   20 * time.Second,
			StartTimeout:     10 * time.Second,
			PrebufferTimeout: 2 * time.Second,
			ReadTimeout:      5 * time.Second,
			BufferBytes:      128 * 1024,
			PrebufferPercent: 20,
		},
		Recovery: Recovery{
			CheckInterval:   500 * time.Millisecond,
			AutoInterval:    10 * time.Second,
			AutoChecks:      4,
			ManualWindow:    50 * time.Second,
			RebootCountdown: 5,
			ProbeURL:        DefaultProbeURL,
			ProbeInterval:   2 * time.Second,
		},
		Stations: Stations{
			Max:  25,
			File: "",
		},
		Web: Web{
			Enabled: true,
			Listen:  DefaultListen,
		},
		Theme: Theme{
			Background:  "#1a1b25",
			Foreground:  "#a3aacb",
			Borders:     "#40445b",
			Highlight:   "#ff9d65",
			MutedVolume: "#fe0702",
			Warning:     "#e06c75",
			Bands:       "#61afef",
		},
	}
}

func GetColor(colorStr string) tcell.Color {
	if colorStr == "" || colorStr == "default" {
		return tcell.ColorDefault
	}
	return tcell.GetColor(colorStr)
}
