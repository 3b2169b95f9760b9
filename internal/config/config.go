package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Cron     CronConfig     `mapstructure:"cron"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Accuracy AccuracyConfig `mapstructure:"accuracy"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	AutoResolve string `mapstructure:"auto_resolve"`
}

type ForecastConfig struct {
	// Iterations is the Monte Carlo trial count per forecast.
	Iterations int `mapstructure:"iterations"`
	// Concentration shapes the Beta draw around each stated probability.
	// Higher means tighter; zero or negative disables the uncertainty draw.
	Concentration float64 `mapstructure:"concentration"`
	// Workers shards the simulation loop. Zero picks a default.
	Workers int `mapstructure:"workers"`
	// SnapshotTimeout bounds the deal snapshot fetch.
	SnapshotTimeout time.Duration `mapstructure:"snapshot_timeout"`
	// HealthWeight blends the per-deal health score into the effective close
	// probability fed to the simulator. Zero keeps the stated probability.
	HealthWeight float64 `mapstructure:"health_weight"`
}

type ScoringConfig struct {
	// StalenessDays is the engagement horizon after which the engagement
	// dimension bottoms out.
	StalenessDays int `mapstructure:"staleness_days"`
}

type AccuracyConfig struct {
	// Window is the number of most recent resolved forecasts that feed the
	// rolling accuracy used for confidence calibration.
	Window int `mapstructure:"window"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.auto_resolve", "@every 1h")
	v.SetDefault("forecast.iterations", 10000)
	v.SetDefault("forecast.concentration", 40.0)
	v.SetDefault("forecast.workers", 0)
	v.SetDefault("forecast.snapshot_timeout", "5s")
	v.SetDefault("forecast.health_weight", 0.0)
	v.SetDefault("scoring.staleness_days", 14)
	v.SetDefault("accuracy.window", 10)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
