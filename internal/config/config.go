package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "GIGBOARD_"

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Transport TransportConfig `yaml:"transport" envPrefix:"TRANSPORT_"`
	Store     StoreConfig     `yaml:"store" envPrefix:"STORE_"`
	Ledger    LedgerConfig    `yaml:"ledger" envPrefix:"LEDGER_"`
	ReadModel ReadModelConfig `yaml:"read_model" envPrefix:"READ_MODEL_"`
	Actions   ActionsConfig   `yaml:"actions" envPrefix:"ACTIONS_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
}

type TransportConfig struct {
	// Mode is "stdio" or "http".
	Mode string `yaml:"mode" env:"MODE"`
}

// StoreConfig locates the local SQLite database holding the activity log
// and, for the dev driver, the ledger itself.
type StoreConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type LedgerConfig struct {
	// Driver is "dev" (local SQLite ledger) or "eth" (escrow contract over JSON-RPC).
	Driver string          `yaml:"driver" env:"DRIVER"`
	Dev    DevLedgerConfig `yaml:"dev" envPrefix:"DEV_"`
	Eth    EthLedgerConfig `yaml:"eth" envPrefix:"ETH_"`
}

type DevLedgerConfig struct {
	// Account is the identity writes are signed as. Empty starts read-only.
	Account    string        `yaml:"account" env:"ACCOUNT"`
	BlockDelay time.Duration `yaml:"block_delay" env:"BLOCK_DELAY"`
}

type EthLedgerConfig struct {
	RPCURL       string        `yaml:"rpc_url" env:"RPC_URL"`
	Contract     string        `yaml:"contract" env:"CONTRACT"`
	PrivateKey   string        `yaml:"private_key" env:"PRIVATE_KEY"`
	ChainID      int64         `yaml:"chain_id" env:"CHAIN_ID"`
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
}

type ReadModelConfig struct {
	// AutoRefresh rebuilds the snapshot on this interval. Zero disables it.
	AutoRefresh time.Duration `yaml:"auto_refresh" env:"AUTO_REFRESH"`
}

type ActionsConfig struct {
	SettlementTimeout time.Duration `yaml:"settlement_timeout" env:"SETTLEMENT_TIMEOUT"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	// Path redirects logs to a file.
	Path string `yaml:"path" env:"PATH"`
}

type TelemetryConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLPEndpoint is a full URL such as http://localhost:4318.
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "stdio",
		},
		Store: StoreConfig{
			Path: "gigboard.db",
		},
		Ledger: LedgerConfig{
			Driver: "dev",
			Eth: EthLedgerConfig{
				PollInterval: 2 * time.Second,
			},
		},
		Actions: ActionsConfig{
			SettlementTimeout: 2 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "gigboard",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
// Environment variables win over the file.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvPrefix + "CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Errorf("transport.mode must be stdio or http, got %q", c.Transport.Mode))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Ledger.Driver {
	case "dev":
		if c.Ledger.Dev.BlockDelay < 0 {
			errs = append(errs, errors.New("ledger.dev.block_delay must not be negative"))
		}
	case "eth":
		if c.Ledger.Eth.RPCURL == "" {
			errs = append(errs, errors.New("ledger.eth.rpc_url is required"))
		}
		if c.Ledger.Eth.Contract == "" {
			errs = append(errs, errors.New("ledger.eth.contract is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.driver must be dev or eth, got %q", c.Ledger.Driver))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.ReadModel.AutoRefresh < 0 {
		errs = append(errs, errors.New("read_model.auto_refresh must not be negative"))
	}
	if c.Actions.SettlementTimeout < 0 {
		errs = append(errs, errors.New("actions.settlement_timeout must not be negative"))
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, errors.New("telemetry.otlp_endpoint is required when telemetry is enabled"))
	}
	return errors.Join(errs...)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
