package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ErrInvalid marks a configuration that cannot drive a training session.
var ErrInvalid = errors.New("invalid configuration")

// Config struct is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Game       GameConfig       `mapstructure:"game"`
	Levels     LevelsConfig     `mapstructure:"levels"`
	Trials     TrialsConfig     `mapstructure:"trials"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Arithmetic ArithmeticConfig `mapstructure:"arithmetic"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port            string `mapstructure:"port"`
	SessionSecret   string `mapstructure:"session_secret"`
	SecureCookies   bool   `mapstructure:"secure_cookies"`
	SelectRateLimit int    `mapstructure:"select_rate_limit"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// StorageConfig selects where session history is kept.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	DataDir   string `mapstructure:"data_dir"`
	StatsFile string `mapstructure:"stats_file"`
	Archive   bool   `mapstructure:"archive"`
}

// GameConfig holds the stimulus generation and progression switches.
type GameConfig struct {
	Mode                    int     `mapstructure:"mode"`
	Manual                  bool    `mapstructure:"manual"`
	JaeggiMode              bool    `mapstructure:"jaeggi_mode"`
	JaeggiScoring           bool    `mapstructure:"jaeggi_scoring"`
	VariableNBack           bool    `mapstructure:"variable_nback"`
	ResetLevel              bool    `mapstructure:"reset_level"`
	RolloverHour            int     `mapstructure:"rollover_hour"`
	ChanceOfGuaranteedMatch float64 `mapstructure:"chance_of_guaranteed_match"`
	ChanceOfInterference    float64 `mapstructure:"chance_of_interference"`
	MultiMode               string  `mapstructure:"multi_mode"`
	VisualColors            []int   `mapstructure:"visual_colors"`
}

// LevelsConfig holds per-mode N-back and tick overrides.
type LevelsConfig struct {
	BackDefault     int         `mapstructure:"back_default"`
	Back            map[int]int `mapstructure:"back"`
	TicksDefault    int         `mapstructure:"ticks_default"`
	Ticks           map[int]int `mapstructure:"ticks"`
	BonusTicksCrab  int         `mapstructure:"bonus_ticks_crab"`
	BonusTicksMulti map[int]int `mapstructure:"bonus_ticks_multi"`
}

// TrialsConfig parameterises trials = base + factor * level^exponent.
type TrialsConfig struct {
	Base     int `mapstructure:"base"`
	Factor   int `mapstructure:"factor"`
	Exponent int `mapstructure:"exponent"`
}

// ThresholdsConfig holds the level hysteresis thresholds.
type ThresholdsConfig struct {
	Advance          int `mapstructure:"advance"`
	Fallback         int `mapstructure:"fallback"`
	FallbackSessions int `mapstructure:"fallback_sessions"`
	JaeggiAdvance    int `mapstructure:"jaeggi_advance"`
	JaeggiFallback   int `mapstructure:"jaeggi_fallback"`
}

// ArithmeticConfig holds operand ranges and enabled operations.
type ArithmeticConfig struct {
	MaxNumber          int      `mapstructure:"max_number"`
	UseNegatives       bool     `mapstructure:"use_negatives"`
	UseAddition        bool     `mapstructure:"use_addition"`
	UseSubtraction     bool     `mapstructure:"use_subtraction"`
	UseMultiplication  bool     `mapstructure:"use_multiplication"`
	UseDivision        bool     `mapstructure:"use_division"`
	AcceptableDecimals []string `mapstructure:"acceptable_decimals"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5050")
	v.SetDefault("server.session_secret", "")
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.select_rate_limit", 10) // profile selections per minute and client

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/nback.db")
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "nback-db")

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs

	// Storage defaults
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.stats_file", "stats.txt")
	v.SetDefault("storage.archive", false)

	// Game defaults
	v.SetDefault("game.mode", 2)
	v.SetDefault("game.manual", false)
	v.SetDefault("game.jaeggi_mode", false)
	v.SetDefault("game.jaeggi_scoring", false)
	v.SetDefault("game.variable_nback", false)
	v.SetDefault("game.reset_level", false)
	v.SetDefault("game.rollover_hour", 4)
	v.SetDefault("game.chance_of_guaranteed_match", 0.125)
	v.SetDefault("game.chance_of_interference", 0.125)
	v.SetDefault("game.multi_mode", "color")
	v.SetDefault("game.visual_colors", []int{1, 3, 8, 6})

	// Level defaults; modes 4-9 start at 1-back
	v.SetDefault("levels.back_default", 2)
	v.SetDefault("levels.back", map[string]int{"4": 1, "5": 1, "6": 1, "7": 1, "8": 1, "9": 1})
	v.SetDefault("levels.ticks_default", 30)
	v.SetDefault("levels.ticks", map[string]int{"4": 35, "5": 35, "6": 35, "7": 40, "8": 40, "9": 40})
	v.SetDefault("levels.bonus_ticks_crab", 0)
	v.SetDefault("levels.bonus_ticks_multi", map[string]int{"2": 5, "3": 10, "4": 15})

	// Trial count defaults
	v.SetDefault("trials.base", 20)
	v.SetDefault("trials.factor", 1)
	v.SetDefault("trials.exponent", 2)

	// Threshold defaults
	v.SetDefault("thresholds.advance", 80)
	v.SetDefault("thresholds.fallback", 50)
	v.SetDefault("thresholds.fallback_sessions", 3)
	v.SetDefault("thresholds.jaeggi_advance", 90)
	v.SetDefault("thresholds.jaeggi_fallback", 75)

	// Arithmetic defaults
	v.SetDefault("arithmetic.max_number", 12)
	v.SetDefault("arithmetic.use_negatives", false)
	v.SetDefault("arithmetic.use_addition", true)
	v.SetDefault("arithmetic.use_subtraction", true)
	v.SetDefault("arithmetic.use_multiplication", true)
	v.SetDefault("arithmetic.use_division", true)
	v.SetDefault("arithmetic.acceptable_decimals", []string{
		"0.1", "0.2", "0.3", "0.4", "0.5", "0.6", "0.7", "0.8", "0.9",
		"0.125", "0.25", "0.375", "0.625", "0.75", "0.875",
		"0.15", "0.35", "0.45", "0.55", "0.65", "0.85", "0.95",
	})
}

// Init initializes the configuration with Viper. onChange, when non-nil,
// receives every successfully reloaded and validated configuration.
func Init(projectRoot string, log *zap.Logger, onChange func(*Config)) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// --- File Configuration ---
	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Binding ---
	v.SetEnvPrefix("NBACK") // e.g., NBACK_GAME_MODE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	conf, err := decode(v)
	if err != nil {
		return nil, err
	}

	if onChange != nil && v.ConfigFileUsed() != "" {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
			next, err := decode(v)
			if err != nil {
				log.Error("Error reloading configuration", zap.Error(err))
				return
			}
			onChange(next)
		})
	}

	log.Info("Configuration loaded successfully",
		zap.String("file", v.ConfigFileUsed()),
		zap.Int("mode", conf.Game.Mode),
		zap.Bool("jaeggi_mode", conf.Game.JaeggiMode),
	)
	return conf, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	conf, err := decode(v)
	if err != nil {
		panic("default configuration is invalid: " + err.Error())
	}
	return conf
}

func decode(v *viper.Viper) (*Config, error) {
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	conf.Normalize()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
