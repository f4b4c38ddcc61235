package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/erc7824/nitrolite/ethsigner/pkg/log"
)

const (
	configDirPathEnv     = "SIGNER_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."
	configFileName       = "signer.yaml"
)

// Config represents the overall application configuration
type Config struct {
	KeyPath string `yaml:"key_path" env:"SIGNER_KEY_PATH" env-default:""`
	ChainID uint64 `yaml:"chain_id" env:"SIGNER_CHAIN_ID" env-default:"3"`

	ListenAddr  string `yaml:"listen_addr" env:"SIGNER_LISTEN_ADDR" env-default:"0.0.0.0:3030"`
	RPCPath     string `yaml:"rpc_path" env:"SIGNER_RPC_PATH" env-default:"/ws"`
	MetricsAddr string `yaml:"metrics_addr" env:"SIGNER_METRICS_ADDR" env-default:":4242"`
	MetricsPath string `yaml:"metrics_path" env:"SIGNER_METRICS_PATH" env-default:"/metrics"`

	RequestTimeout        time.Duration `yaml:"request_timeout" env:"SIGNER_REQUEST_TIMEOUT" env-default:"10s"`
	MaxConcurrentRequests int64         `yaml:"max_concurrent_requests" env:"SIGNER_MAX_CONCURRENT_REQUESTS" env-default:"16"`
	ShutdownTimeout       time.Duration `yaml:"shutdown_timeout" env:"SIGNER_SHUTDOWN_TIMEOUT" env-default:"5s"`

	Log log.Config `yaml:"log"`
}

// LoadConfig builds configuration from <configDirPath>/signer.yaml and
// environment variables, in increasing priority. A .env file in the same
// directory is loaded first when present; variables already set in the
// environment win. Fields left unset by both fall back to their defaults.
func LoadConfig(logger log.Logger) (*Config, error) {
	logger = logger.WithName("config")

	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	configDotEnvPath := filepath.Join(configDirPath, ".env")
	logger.Debug("loading .env file", "path", configDotEnvPath)
	if err := godotenv.Load(configDotEnvPath); err != nil {
		logger.Debug(".env file not loaded", "path", configDotEnvPath)
	}

	var conf Config
	if err := loadConfigFile(configDirPath, &conf); err != nil {
		return nil, err
	}
	if err := cleanenv.ReadEnv(&conf); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}

	return &conf, nil
}

// loadConfigFile decodes the optional YAML config file into conf.
func loadConfigFile(configDirPath string, conf *Config) error {
	f, err := os.Open(filepath.Join(configDirPath, configFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(conf); err != nil {
		return fmt.Errorf("failed to parse %s: %w", configFileName, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("SIGNER_CHAIN_ID must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("SIGNER_REQUEST_TIMEOUT must be positive")
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("SIGNER_MAX_CONCURRENT_REQUESTS must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SIGNER_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// ServiceConfig returns the part of the configuration the signing service needs.
func (c Config) ServiceConfig() ServiceConfig {
	return ServiceConfig{ChainID: c.ChainID}
}
