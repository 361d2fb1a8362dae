package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"bead-road-feed/internal/logging"
	"bead-road-feed/internal/road"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Road     RoadConfig     `mapstructure:"road"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Server   ServerConfig   `mapstructure:"server"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ChainConfig covers on-chain data access and the poll cadence.
type ChainConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	Confirmations   uint64        `mapstructure:"confirmations"`
	InitialBlocks   uint64        `mapstructure:"initial_blocks"`
	MaxBatch        uint64        `mapstructure:"max_batch"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// RoadConfig fixes the bead-road shape and backlog depth.
type RoadConfig struct {
	Cols    int `mapstructure:"cols"`
	Rows    int `mapstructure:"rows"`
	Backlog int `mapstructure:"backlog"`
}

// Layout returns the configured grid layout.
func (r RoadConfig) Layout() road.Layout {
	return road.Layout{Cols: r.Cols, Rows: r.Rows}.Normalize()
}

// RulesConfig carries the sampling rule presets.
type RulesConfig struct {
	Default string      `mapstructure:"default"`
	Presets []road.Rule `mapstructure:"presets"`
}

// ServerConfig governs the HTTP/websocket surface.
type ServerConfig struct {
	Listen       string          `mapstructure:"listen"`
	ReadTimeout  time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout time.Duration   `mapstructure:"write_timeout"`
	WS           WebsocketConfig `mapstructure:"ws"`
}

// WebsocketConfig tunes the push channel.
type WebsocketConfig struct {
	ReadBuffer  int `mapstructure:"read_buffer"`
	WriteBuffer int `mapstructure:"write_buffer"`
	SendQueue   int `mapstructure:"send_queue"`
}

// AlertingConfig defines dragon alert thresholds and routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BEADROAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for i, rule := range cfg.Rules.Presets {
		cfg.Rules.Presets[i] = rule.Normalize()
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "beadroad")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("chain.request_timeout", "10s")
	v.SetDefault("chain.poll_interval", "3s")
	v.SetDefault("chain.confirmations", 2)
	v.SetDefault("chain.initial_blocks", 300)
	v.SetDefault("chain.max_batch", 256)
	v.SetDefault("chain.advisory_lock_key", int64(0x62656164))
	v.SetDefault("chain.startup_delay", "0s")

	v.SetDefault("road.cols", 44)
	v.SetDefault("road.rows", 6)
	v.SetDefault("road.backlog", 4096)

	v.SetDefault("rules.default", "all")
	v.SetDefault("rules.presets", []map[string]any{
		{"id": "all", "label": "Every block", "step": 1, "trend_rows": 6, "dragon_threshold": 7},
		{"id": "step-10", "label": "Every 10th block", "step": 10, "trend_rows": 6, "dragon_threshold": 5},
		{"id": "step-100", "label": "Every 100th block", "step": 100, "trend_rows": 6, "dragon_threshold": 4},
	})

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.ws.read_buffer", 4096)
	v.SetDefault("server.ws.write_buffer", 4096)
	v.SetDefault("server.ws.send_queue", 64)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "10m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Chain.PollInterval <= 0 {
		return fmt.Errorf("chain.poll_interval must be greater than zero")
	}
	if c.Road.Cols <= 0 || c.Road.Rows <= 0 {
		return fmt.Errorf("road.cols and road.rows must be greater than zero")
	}
	if c.Road.Backlog < c.Road.Cols*c.Road.Rows {
		return fmt.Errorf("road.backlog must cover at least one full grid (%d)", c.Road.Cols*c.Road.Rows)
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if len(c.Rules.Presets) == 0 {
		return fmt.Errorf("rules.presets must not be empty")
	}

	seen := make(map[string]struct{}, len(c.Rules.Presets))
	for i, rule := range c.Rules.Presets {
		if rule.ID == "" {
			return fmt.Errorf("rules.presets[%d].id must not be empty", i)
		}
		if _, dup := seen[rule.ID]; dup {
			return fmt.Errorf("rules.presets 存在重复 id: %s", rule.ID)
		}
		seen[rule.ID] = struct{}{}
	}
	if _, ok := seen[c.Rules.Default]; !ok {
		return fmt.Errorf("rules.default %q 不在 presets 中", c.Rules.Default)
	}

	if c.Alerting.Cooldown < 0 {
		return fmt.Errorf("alerting.cooldown cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
