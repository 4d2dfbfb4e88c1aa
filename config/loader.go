package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "FASTAUTH"

// LoaderConfig holds optional file overrides.
type LoaderConfig struct {
	ConfigFile string
	EnvFile    string
	// SearchPaths are tried in order for config.yml when ConfigFile is empty.
	SearchPaths []string
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithConfigFile sets an explicit YAML file. A missing explicit file is an error.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file. A missing explicit file is an error.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

func WithSearchPaths(paths ...string) LoaderOption {
	return func(lc *LoaderConfig) { lc.SearchPaths = paths }
}

var defaultSearchPaths = []string{"./config.yml", "./config/config.yml", "../config.yml"}

// Load reads defaults, then the YAML file, then .env, then the process
// environment. Variables already set in the environment win over .env.
func Load(opts ...LoaderOption) (*File, error) {
	lc := LoaderConfig{SearchPaths: defaultSearchPaths}
	for _, opt := range opts {
		opt(&lc)
	}

	// 1. .env first so its values are visible to AutomaticEnv
	envFile := lc.EnvFile
	if envFile == "" && exists(".env") {
		envFile = ".env"
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	// 2. YAML base configuration
	configFile := lc.ConfigFile
	if configFile == "" {
		for _, p := range lc.SearchPaths {
			if exists(p) {
				configFile = p
				break
			}
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	// 3. Environment overrides everything
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &f, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
