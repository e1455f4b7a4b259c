package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/delaycast/internal/bayes"
	"github.com/sells-group/delaycast/internal/store"
	"github.com/sells-group/delaycast/internal/weather"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Prior      PriorConfig      `yaml:"prior" mapstructure:"prior"`
	Weather    WeatherConfig    `yaml:"weather" mapstructure:"weather"`
	Curve      CurveConfig      `yaml:"curve" mapstructure:"curve"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
}

// StoreConfig configures the observation database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the forecast API server.
type ServerConfig struct {
	Port      int     `yaml:"port" mapstructure:"port"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PriorConfig sets the Beta prior used when a route has no history.
type PriorConfig struct {
	Alpha float64 `yaml:"alpha" mapstructure:"alpha"`
	Beta  float64 `yaml:"beta" mapstructure:"beta"`
}

// WeatherConfig configures the weather adjustment strategy and its bumps.
type WeatherConfig struct {
	Strategy      string  `yaml:"strategy" mapstructure:"strategy"`
	ColdTempC     float64 `yaml:"cold_temp_c" mapstructure:"cold_temp_c"`
	HotTempC      float64 `yaml:"hot_temp_c" mapstructure:"hot_temp_c"`
	WindKt        float64 `yaml:"wind_kt" mapstructure:"wind_kt"`
	PrecipMultMM  float64 `yaml:"precip_mult_mm" mapstructure:"precip_mult_mm"`
	PrecipAddMM   float64 `yaml:"precip_add_mm" mapstructure:"precip_add_mm"`
	TempMult      float64 `yaml:"temp_mult" mapstructure:"temp_mult"`
	WindMult      float64 `yaml:"wind_mult" mapstructure:"wind_mult"`
	PrecipMult    float64 `yaml:"precip_mult" mapstructure:"precip_mult"`
	TempAdd       float64 `yaml:"temp_add" mapstructure:"temp_add"`
	WindAdd       float64 `yaml:"wind_add" mapstructure:"wind_add"`
	PrecipAdd     float64 `yaml:"precip_add" mapstructure:"precip_add"`
	MaxExpDelayMn float64 `yaml:"max_exp_delay_min" mapstructure:"max_exp_delay_min"`
}

// CurveConfig configures the delay curve.
type CurveConfig struct {
	MeanOnTimeDelay float64 `yaml:"mean_on_time_delay" mapstructure:"mean_on_time_delay"`
	MeanLateDelay   float64 `yaml:"mean_late_delay" mapstructure:"mean_late_delay"`
	ThresholdProb   float64 `yaml:"threshold_prob" mapstructure:"threshold_prob"`
}

// ValidationConfig holds walk-forward run defaults.
type ValidationConfig struct {
	EarliestYear int `yaml:"earliest_year" mapstructure:"earliest_year"`
	ThresholdMin int `yaml:"threshold_min" mapstructure:"threshold_min"`
	Parallel     int `yaml:"parallel" mapstructure:"parallel"`
	TimeoutSecs  int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DELAYCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "delaycast.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("prior.alpha", 0.5)
	v.SetDefault("prior.beta", 0.5)
	v.SetDefault("weather.strategy", "multiplicative")
	v.SetDefault("weather.cold_temp_c", 0)
	v.SetDefault("weather.hot_temp_c", 33)
	v.SetDefault("weather.wind_kt", 25)
	v.SetDefault("weather.precip_mult_mm", 5)
	v.SetDefault("weather.precip_add_mm", 10)
	v.SetDefault("weather.temp_mult", 1.3)
	v.SetDefault("weather.wind_mult", 1.4)
	v.SetDefault("weather.precip_mult", 1.5)
	v.SetDefault("weather.temp_add", 0.15)
	v.SetDefault("weather.wind_add", 0.15)
	v.SetDefault("weather.precip_add", 0.30)
	v.SetDefault("weather.max_exp_delay_min", 180)
	v.SetDefault("curve.mean_on_time_delay", 0.5)
	v.SetDefault("curve.mean_late_delay", 25)
	v.SetDefault("curve.threshold_prob", 0.3)
	v.SetDefault("validation.earliest_year", 2015)
	v.SetDefault("validation.threshold_min", 15)
	v.SetDefault("validation.parallel", 0)
	v.SetDefault("validation.timeout_secs", 0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// StoreSettings maps the configured backend onto the store driver config.
func (c *Config) StoreSettings() store.Config {
	sc := store.Config{
		Driver:   c.Store.Driver,
		Path:     c.Store.Path,
		Postgres: c.Store.DatabaseURL,
	}
	if c.Store.MaxConns > 0 || c.Store.MinConns > 0 {
		sc.Pool = &store.PoolConfig{MaxConns: c.Store.MaxConns, MinConns: c.Store.MinConns}
	}
	return sc
}

// WeatherSettings maps the configured thresholds and bumps onto the
// adjuster config.
func (c *Config) WeatherSettings() weather.Config {
	return weather.Config{
		ColdTempC:           c.Weather.ColdTempC,
		HotTempC:            c.Weather.HotTempC,
		WindKt:              c.Weather.WindKt,
		PrecipMultMM:        c.Weather.PrecipMultMM,
		PrecipAddMM:         c.Weather.PrecipAddMM,
		TempMult:            c.Weather.TempMult,
		WindMult:            c.Weather.WindMult,
		PrecipMult:          c.Weather.PrecipMult,
		TempAdd:             c.Weather.TempAdd,
		WindAdd:             c.Weather.WindAdd,
		PrecipAdd:           c.Weather.PrecipAdd,
		MaxExpectedDelayMin: c.Weather.MaxExpDelayMn,
	}
}

// Adjuster builds the configured weather adjuster.
func (c *Config) Adjuster() *weather.Adjuster {
	strategy := weather.StrategyMultiplicative
	if c.Weather.Strategy == string(weather.StrategyAdditive) {
		strategy = weather.StrategyAdditive
	}
	return weather.NewAdjuster(strategy, c.WeatherSettings())
}

// DelayCurve builds the configured delay curve.
func (c *Config) DelayCurve() *bayes.DelayCurve {
	return &bayes.DelayCurve{
		MeanOnTimeDelay: c.Curve.MeanOnTimeDelay,
		MeanLateDelay:   c.Curve.MeanLateDelay,
		ThresholdProb:   c.Curve.ThresholdProb,
	}
}

// BasePrior returns the configured no-history Beta prior.
func (c *Config) BasePrior() bayes.Prior {
	return bayes.Prior{Alpha: c.Prior.Alpha, Beta: c.Prior.Beta}
}

// ValidationTimeout returns the configured run deadline, zero for none.
func (c *Config) ValidationTimeout() time.Duration {
	return time.Duration(c.Validation.TimeoutSecs) * time.Second
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
