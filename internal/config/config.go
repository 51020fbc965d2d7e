// Package config holds the engine defaults and loads overrides through viper.
package config

import (
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// EnvKeyReplacer maps config keys to TVCONTROL_* environment variable names.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Config is the single source of every tunable the engine uses.
type Config struct {
	Server struct {
		Addr      string `mapstructure:"addr"`
		AdminAddr string `mapstructure:"admin_addr"`
	} `mapstructure:"server"`

	Channel struct {
		// URL of the hub websocket endpoint, without the topic suffix.
		URL       string `mapstructure:"url"`
		AccountID string `mapstructure:"account_id"`
	} `mapstructure:"channel"`

	Content struct {
		BaseURL string `mapstructure:"base_url"`
		Token   string `mapstructure:"token"`
	} `mapstructure:"content"`

	Engine Engine `mapstructure:"engine"`
}

// Engine groups the timing and ratio defaults of the orchestration engine.
type Engine struct {
	AdDuration          time.Duration `mapstructure:"ad_duration"`
	ContentRatio        float64       `mapstructure:"content_ratio"`
	ContentFallback     time.Duration `mapstructure:"content_fallback"`
	AdBatchSize         int           `mapstructure:"ad_batch_size"`
	ImageDuration       time.Duration `mapstructure:"image_duration"`
	WatchdogThreshold   time.Duration `mapstructure:"watchdog_threshold"`
	WatchdogTick        time.Duration `mapstructure:"watchdog_tick"`
	StatusInterval      time.Duration `mapstructure:"status_interval"`
	HeartbeatInterval   time.Duration `mapstructure:"heartbeat_interval"`
	ContentPollInterval time.Duration `mapstructure:"content_poll_interval"`
	MediaErrorDelay     time.Duration `mapstructure:"media_error_delay"`
	JukeboxCooldown     time.Duration `mapstructure:"jukebox_cooldown"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
}

// Defaults returns the engine settings without consulting viper.
func Defaults() Engine {
	return Engine{
		AdDuration:          15 * time.Second,
		ContentRatio:        70,
		ContentFallback:     30 * time.Second,
		AdBatchSize:         2,
		ImageDuration:       10 * time.Second,
		WatchdogThreshold:   45 * time.Second,
		WatchdogTick:        5 * time.Second,
		StatusInterval:      30 * time.Second,
		HeartbeatInterval:   30 * time.Second,
		ContentPollInterval: 60 * time.Second,
		MediaErrorDelay:     3 * time.Second,
		JukeboxCooldown:     30 * time.Minute,
		RequestTimeout:      10 * time.Second,
	}
}

// Default lists every key with its factory value. The engine keys are
// derived from Defaults.
var Default = withEngine(map[string]interface{}{
	"server.addr":       ":8080",
	"server.admin_addr": ":9090",

	"channel.url":        "ws://localhost:8080/ws/channels",
	"channel.account_id": "",

	"content.base_url": "http://localhost:3000/api",
	"content.token":    "",
}, Defaults())

func withEngine(keys map[string]interface{}, e Engine) map[string]interface{} {
	engine := make(map[string]interface{})
	lo.Must0(mapstructure.Decode(e, &engine))
	for name, value := range engine {
		keys["engine."+name] = value
	}
	return keys
}

// Setup registers defaults, env bindings and the optional tvcontrol.toml file.
func Setup() error {
	viper.SetConfigName("tvcontrol")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("TVCONTROL")
	viper.SetEnvKeyReplacer(EnvKeyReplacer)
	viper.AutomaticEnv()

	viper.SetTypeByDefaultValue(true)
	for name, value := range Default {
		viper.SetDefault(name, value)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Load runs Setup and decodes the result.
func Load() (*Config, error) {
	if err := Setup(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Engine = cfg.Engine.normalized()
	return &cfg, nil
}

// normalized replaces zero or out-of-range values with their defaults.
func (e Engine) normalized() Engine {
	d := Defaults()
	if e.AdDuration <= 0 {
		e.AdDuration = d.AdDuration
	}
	if e.ContentRatio < 0 || e.ContentRatio > 100 {
		e.ContentRatio = d.ContentRatio
	}
	if e.ContentFallback <= 0 {
		e.ContentFallback = d.ContentFallback
	}
	if e.AdBatchSize <= 0 {
		e.AdBatchSize = d.AdBatchSize
	}
	if e.ImageDuration <= 0 {
		e.ImageDuration = d.ImageDuration
	}
	if e.WatchdogThreshold <= 0 {
		e.WatchdogThreshold = d.WatchdogThreshold
	}
	if e.WatchdogTick <= 0 {
		e.WatchdogTick = d.WatchdogTick
	}
	if e.StatusInterval <= 0 {
		e.StatusInterval = d.StatusInterval
	}
	if e.HeartbeatInterval <= 0 {
		e.HeartbeatInterval = d.HeartbeatInterval
	}
	if e.ContentPollInterval <= 0 {
		e.ContentPollInterval = d.ContentPollInterval
	}
	if e.MediaErrorDelay <= 0 {
		e.MediaErrorDelay = d.MediaErrorDelay
	}
	if e.JukeboxCooldown <= 0 {
		e.JukeboxCooldown = d.JukeboxCooldown
	}
	if e.RequestTimeout <= 0 {
		e.RequestTimeout = d.RequestTimeout
	}
	return e
}
