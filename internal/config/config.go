package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Logging       LoggingConfig   `yaml:"logging"`
	Debug         DebugConfig     `yaml:"debug"`
	Ledger        LedgerConfig    `yaml:"ledger"`
	Operator      OperatorConfig  `yaml:"operator"`
	Treasury      TreasuryConfig  `yaml:"treasury"`
	Storage       StorageConfig   `yaml:"storage"`
	Fees          FeesConfig      `yaml:"fees"`
	Swap          SwapConfig      `yaml:"swap"`
	Discovery     DiscoveryConfig `yaml:"discovery"`
	Prices        PricesConfig    `yaml:"prices"`
	RateLimit     RateLimitConfig `yaml:"rateLimit"`
	Cors          CorsConfig      `yaml:"cors"`
	ListenAddress string          `yaml:"listenAddress" envconfig:"LISTEN_ADDRESS"`
	ListenPort    uint            `yaml:"port"          envconfig:"PORT"`
}

type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LOGGING_LEVEL"`
}

type DebugConfig struct {
	ListenAddress string `yaml:"address" envconfig:"DEBUG_ADDRESS"`
	ListenPort    uint   `yaml:"port"    envconfig:"DEBUG_PORT"`
}

type LedgerConfig struct {
	// Mode selects the ledger client implementation: "memory" for the
	// in-process ledger used in development and tests
	Mode string `yaml:"mode" envconfig:"LEDGER_MODE"`
	// Timeout in seconds applied to every ledger call
	Timeout uint `yaml:"timeout" envconfig:"LEDGER_TIMEOUT"`
	// SettlementDelay in seconds between TX1 publish and TX2 construction
	SettlementDelay uint `yaml:"settlementDelay" envconfig:"SETTLEMENT_DELAY"`
}

type OperatorConfig struct {
	Mnemonic string `yaml:"mnemonic" envconfig:"OPERATOR_MNEMONIC"`
}

type TreasuryConfig struct {
	// Address receiving the protocol fee leg; derived from the operator
	// wallet when empty
	Address string `yaml:"address" envconfig:"TREASURY_ADDRESS"`
}

type StorageConfig struct {
	Directory string `yaml:"dir" envconfig:"STORAGE_DIR"`
	// PoolsFile is a JSON pool list read when the repository is empty at
	// startup and rewritten after every pool creation; empty disables it
	PoolsFile string `yaml:"poolsFile" envconfig:"STORAGE_POOLS_FILE"`
}

type FeesConfig struct {
	TotalBps    uint `yaml:"totalBps"    envconfig:"FEE_TOTAL_BPS"`
	ProtocolBps uint `yaml:"protocolBps" envconfig:"FEE_PROTOCOL_BPS"`
}

type SwapConfig struct {
	// Tx2Retries bounds payout retries before the refund path
	Tx2Retries uint `yaml:"tx2Retries" envconfig:"SWAP_TX2_RETRIES"`
}

type DiscoveryConfig struct {
	// Addresses are candidate pool storage accounts checked by the
	// background discovery pass
	Addresses []string `yaml:"addresses" envconfig:"DISCOVERY_ADDRESSES"`
	// Delay in seconds before the discovery pass starts
	Delay uint `yaml:"delay" envconfig:"DISCOVERY_DELAY"`
}

type PricesConfig struct {
	// Tokens maps token symbols to a reference-unit price for the stats
	// figures; symbols left out render as unknown
	Tokens map[string]float64 `yaml:"tokens" envconfig:"PRICE_TOKENS"`
}

type RateLimitConfig struct {
	Rps uint `yaml:"rps" envconfig:"RATE_LIMIT_RPS"`
}

type CorsConfig struct {
	Origins []string `yaml:"origins" envconfig:"CORS_ORIGINS"`
}

// Singleton config instance with default values
var globalConfig = &Config{
	ListenPort: 8080,
	Logging: LoggingConfig{
		Level: "info",
	},
	Debug: DebugConfig{
		ListenAddress: "localhost",
		ListenPort:    0,
	},
	Ledger: LedgerConfig{
		Mode:            "memory",
		Timeout:         10,
		SettlementDelay: 1,
	},
	Storage: StorageConfig{
		Directory: "./.tidepool",
	},
	Fees: FeesConfig{
		TotalBps:    30,
		ProtocolBps: 5,
	},
	Swap: SwapConfig{
		Tx2Retries: 3,
	},
	Discovery: DiscoveryConfig{
		Delay: 5,
	},
	RateLimit: RateLimitConfig{
		Rps: 50,
	},
	Cors: CorsConfig{
		Origins: []string{"*"},
	},
}

func Load(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %s", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %s", err)
		}
	}
	// Load config values from environment variables
	// We use "dummy" as the app name here to (mostly) prevent picking up env
	// vars that we hadn't explicitly specified in annotations above
	err := envconfig.Process("dummy", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %s", err)
	}
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func (cfg *Config) validate() error {
	switch cfg.Ledger.Mode {
	case "memory":
		// Supported
	default:
		return fmt.Errorf("unknown ledger mode: %s", cfg.Ledger.Mode)
	}
	if cfg.Fees.TotalBps >= 10_000 {
		return fmt.Errorf("total fee out of range: %d bps", cfg.Fees.TotalBps)
	}
	if cfg.Fees.ProtocolBps > cfg.Fees.TotalBps {
		return fmt.Errorf(
			"protocol fee (%d bps) exceeds total fee (%d bps)",
			cfg.Fees.ProtocolBps,
			cfg.Fees.TotalBps,
		)
	}
	return nil
}

// LedgerTimeout returns the per-call ledger deadline
func (cfg *Config) LedgerTimeout() time.Duration {
	return time.Duration(cfg.Ledger.Timeout) * time.Second
}

// SettlementDelay returns the wait between TX1 and TX2
func (cfg *Config) SettlementDelay() time.Duration {
	return time.Duration(cfg.Ledger.SettlementDelay) * time.Second
}

// Return global config instance
func GetConfig() *Config {
	return globalConfig
}
