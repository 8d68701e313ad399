package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Target    TargetConfig    `mapstructure:"target"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	Output    OutputConfig    `mapstructure:"output"`
	Scenarios ScenariosConfig `mapstructure:"scenarios"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
}

type TargetConfig struct {
	BaseURL string `mapstructure:"baseURL"`
}

type BrowserConfig struct {
	ExecutablePath     string        `mapstructure:"executablePath"`
	Headless           bool          `mapstructure:"headless"`
	UserDataDir        string        `mapstructure:"userDataDir"`
	WebGL              bool          `mapstructure:"webgl"`
	WindowWidth        int           `mapstructure:"windowWidth"`
	WindowHeight       int           `mapstructure:"windowHeight"`
	FullPage           bool          `mapstructure:"fullPage"`
	LaunchTimeout      time.Duration `mapstructure:"launchTimeout"`
	NavigationTimeout  time.Duration `mapstructure:"navigationTimeout"`
	InteractionTimeout time.Duration `mapstructure:"interactionTimeout"`
	ExtraArgs          []string      `mapstructure:"extraArgs"`
}

type ReadinessConfig struct {
	DefaultTimeout time.Duration `mapstructure:"defaultTimeout"`
	DefaultSettle  time.Duration `mapstructure:"defaultSettle"`
	PollInterval   time.Duration `mapstructure:"pollInterval"`
}

type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	DOMSnapshots bool   `mapstructure:"domSnapshots"`
}

type ScenariosConfig struct {
	File string `mapstructure:"file"` // optional YAML scenario definitions
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // console, json
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"maxSize"` // megabytes
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"` // days
	Compress   bool   `mapstructure:"compress"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	ApiKey         string   `mapstructure:"apiKey"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("target.baseURL", "http://localhost:3000")

	v.SetDefault("browser.executablePath", "") // Attempt auto-detect if empty
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.userDataDir", "") // Empty means temporary guest profile
	v.SetDefault("browser.webgl", true)
	v.SetDefault("browser.windowWidth", 1280)
	v.SetDefault("browser.windowHeight", 720)
	v.SetDefault("browser.fullPage", false)
	v.SetDefault("browser.launchTimeout", "30s")
	v.SetDefault("browser.navigationTimeout", "30s")
	v.SetDefault("browser.interactionTimeout", "5s")
	v.SetDefault("browser.extraArgs", []string{})

	v.SetDefault("readiness.defaultTimeout", "30s")
	v.SetDefault("readiness.defaultSettle", "5s")
	v.SetDefault("readiness.pollInterval", "200ms")

	v.SetDefault("output.dir", "verification")
	v.SetDefault("output.domSnapshots", false)

	v.SetDefault("scenarios.file", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "15s")
	v.SetDefault("server.idleTimeout", "60s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSize", 10)
	v.SetDefault("log.maxBackups", 3)
	v.SetDefault("log.maxAge", 7)
	v.SetDefault("log.compress", false)

	v.SetDefault("security.allowedOrigins", []string{"*"})
	v.SetDefault("security.apiKey", "")
}

// LoadConfig reads the config file at path (or the default search locations
// when empty), then applies SCRYSHOT_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scryshot")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.scryshot")
		v.AddConfigPath("/etc/scryshot")
	}

	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("SCRYSHOT")

	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err) // defaults are static
	}
	return &cfg
}
