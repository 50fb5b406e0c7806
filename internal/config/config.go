package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full bot configuration.
type Config struct {
	Token   string        `mapstructure:"token"`
	Log     LogConfig     `mapstructure:"log"`
	Payout  PayoutConfig  `mapstructure:"payout"`
	Ranches []RanchConfig `mapstructure:"ranches"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type PayoutConfig struct {
	Rate          float64       `mapstructure:"rate"`           // money per collected unit
	Weekdays      []string      `mapstructure:"weekdays"`       // payout weekday names
	Time          string        `mapstructure:"time"`           // HH:MM fire time on payout days
	ResetPolicy   string        `mapstructure:"reset_policy"`   // gated or timed
	WipeDelay     time.Duration `mapstructure:"wipe_delay"`     // timed policy: delay before the wipe
	ChoiceTimeout time.Duration `mapstructure:"choice_timeout"` // admin mark-paid choice window
	NoticeTTL     time.Duration `mapstructure:"notice_ttl"`     // transient notices live this long
	SnapshotDir   string        `mapstructure:"snapshot_dir"`   // active payout batches go here
}

// RanchConfig describes one monitored ranch and its channels.
type RanchConfig struct {
	Name             string `mapstructure:"name"`
	SourceChannelID  string `mapstructure:"source_channel_id"`   // game events arrive here
	TargetChannelID  string `mapstructure:"target_channel_id"`   // live summary embed lives here
	PayoutChannelID  string `mapstructure:"payout_channel_id"`   // payout batches get posted here
	HerdLogChannelID string `mapstructure:"herd_log_channel_id"` // cattle transactions get logged here
	DataFile         string `mapstructure:"data_file"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: RANCHHAND_.
// Nested keys use underscore: RANCHHAND_TOKEN, RANCHHAND_LOG_LEVEL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("payout.rate", 1.25)
	v.SetDefault("payout.weekdays", []string{"wednesday", "saturday"})
	v.SetDefault("payout.time", "18:00")
	v.SetDefault("payout.reset_policy", "timed")
	v.SetDefault("payout.wipe_delay", "10s")
	v.SetDefault("payout.choice_timeout", "60s")
	v.SetDefault("payout.notice_ttl", "5s")
	v.SetDefault("payout.snapshot_dir", "payouts")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment variables: RANCHHAND_LOG_LEVEL -> log.level
	v.SetEnvPrefix("RANCHHAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	if len(c.Ranches) == 0 {
		return fmt.Errorf("at least one ranch must be configured")
	}
	seen := map[string]struct{}{}
	for _, ranch := range c.Ranches {
		if ranch.Name == "" {
			return fmt.Errorf("every ranch needs a name")
		}
		if _, ok := seen[ranch.Name]; ok {
			return fmt.Errorf("ranch name %q is configured twice", ranch.Name)
		}
		seen[ranch.Name] = struct{}{}
		if ranch.DataFile == "" {
			return fmt.Errorf("ranch %s: data_file is required", ranch.Name)
		}
	}
	for _, name := range c.Payout.Weekdays {
		if _, ok := weekdayNames[strings.ToLower(name)]; !ok {
			return fmt.Errorf("unknown payout weekday %q", name)
		}
	}
	if _, err := time.Parse("15:04", c.Payout.Time); err != nil {
		return fmt.Errorf("payout time %q is not HH:MM: %w", c.Payout.Time, err)
	}
	switch c.Payout.ResetPolicy {
	case "gated", "timed":
	default:
		return fmt.Errorf("reset_policy must be gated or timed, got %q", c.Payout.ResetPolicy)
	}
	return nil
}

// PayoutWeekdays returns the configured payout weekdays, sorted.
// Only valid after a successful Load
func (c *Config) PayoutWeekdays() []time.Weekday {
	days := make([]time.Weekday, 0, len(c.Payout.Weekdays))
	for _, name := range c.Payout.Weekdays {
		days = append(days, weekdayNames[strings.ToLower(name)])
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// PayoutTimeOfDay returns the configured fire time as hour and minute.
func (c *Config) PayoutTimeOfDay() (int, int) {
	t, _ := time.Parse("15:04", c.Payout.Time)
	return t.Hour(), t.Minute()
}

// RanchNames lists the configured ranch names in order.
func (c *Config) RanchNames() []string {
	names := make([]string, 0, len(c.Ranches))
	for _, ranch := range c.Ranches {
		names = append(names, ranch.Name)
	}
	return names
}

// DataFiles maps each ranch name to its ledger file.
func (c *Config) DataFiles() map[string]string {
	files := map[string]string{}
	for _, ranch := range c.Ranches {
		files[ranch.Name] = ranch.DataFile
	}
	return files
}
