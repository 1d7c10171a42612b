package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/m1ome/ex-eip712/pkg/log"
	"github.com/m1ome/ex-eip712/pkg/sign"
	"github.com/m1ome/ex-eip712/pkg/signing"
)

const (
	configDirPathEnv     = "EIP712_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."
)

// Config is the service configuration read from the environment.
type Config struct {
	RPCListenAddr     string `env:"EIP712_RPC_LISTEN_ADDR" env-default:":8000"`
	RPCEndpoint       string `env:"EIP712_RPC_ENDPOINT" env-default:"/ws"`
	MetricsListenAddr string `env:"EIP712_METRICS_LISTEN_ADDR" env-default:":4242"`
	MetricsEndpoint   string `env:"EIP712_METRICS_ENDPOINT" env-default:"/metrics"`

	CurveBackend     string `env:"EIP712_CURVE_BACKEND" env-default:"geth"`
	SignerPrivateKey string `env:"EIP712_SIGNER_PRIVATE_KEY" env-default:""`
	MaxDocumentSize  int64  `env:"EIP712_MAX_DOCUMENT_SIZE" env-default:"1048576"`
	JournalEnabled   bool   `env:"EIP712_JOURNAL_ENABLED" env-default:"false"`

	Log log.Config

	curve  sign.Curve
	dbConf DatabaseConfig
}

// LoadConfig loads <EIP712_CONFIG_DIR_PATH>/.env when present, then reads
// the environment. An unknown curve backend or an unusable default signer
// key is an error.
func LoadConfig(logger log.Logger) (*Config, error) {
	logger = logger.WithName("config")

	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	configDotEnvPath := filepath.Join(configDirPath, ".env")
	if err := godotenv.Load(configDotEnvPath); err != nil {
		logger.Debug(".env file not loaded", "path", configDotEnvPath, "error", err)
	} else {
		logger.Info("loaded .env file", "path", configDotEnvPath)
	}

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	curve, err := sign.CurveByName(config.CurveBackend)
	if err != nil {
		return nil, err
	}
	config.curve = curve

	if config.SignerPrivateKey != "" {
		secret, err := signing.DecodeSecret(config.SignerPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("EIP712_SIGNER_PRIVATE_KEY: %w", err)
		}
		if err := sign.ValidateSecret(secret); err != nil {
			return nil, fmt.Errorf("EIP712_SIGNER_PRIVATE_KEY: %w", err)
		}
	}

	if config.MaxDocumentSize <= 0 {
		return nil, fmt.Errorf("EIP712_MAX_DOCUMENT_SIZE must be positive, got %d", config.MaxDocumentSize)
	}

	// A database URL takes precedence over the individual variables.
	var dbConf DatabaseConfig
	if dbURL := os.Getenv("EIP712_DATABASE_URL"); dbURL != "" {
		dbConf, err = ParseConnectionString(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse connection string: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&dbConf); err != nil {
		return nil, fmt.Errorf("failed to read database env: %w", err)
	}
	config.dbConf = dbConf

	logger.Info("configuration loaded",
		"curve", config.CurveBackend,
		"journal", config.JournalEnabled,
		"defaultSigner", config.SignerPrivateKey != "",
		"dbDriver", dbConf.Driver)

	return &config, nil
}
