package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/Netflix/go-env"

	"github.com/kursadbilgin/certmint/internal/ledger"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	RedisURL    string `env:"REDIS_URL"`

	IPFSAPIURL     string `env:"IPFS_API_URL,default=http://localhost:5001"`
	IPFSGatewayURL string `env:"IPFS_GATEWAY_URL,default=http://localhost:8080"`

	LedgerRPCURL          string `env:"LEDGER_RPC_URL"`
	LedgerContractAddress string `env:"LEDGER_CONTRACT_ADDRESS"`
	LedgerArtifactPath    string `env:"LEDGER_ARTIFACT_PATH"`
	LedgerChainID         int64  `env:"LEDGER_CHAIN_ID,default=31337"`
	IssuerPrivateKey      string `env:"ISSUER_PRIVATE_KEY"`

	DirectoryURL        string `env:"DIRECTORY_URL,default=http://localhost:5002"`
	ResolveSubjectNames bool   `env:"RESOLVE_SUBJECT_NAMES,default=false"`

	ContentUploadRetries    int `env:"CONTENT_UPLOAD_RETRIES,default=0"`
	LedgerSubmitRetries     int `env:"LEDGER_SUBMIT_RETRIES,default=0"`
	ContentUploadTimeoutSec int `env:"CONTENT_UPLOAD_TIMEOUT_SEC,default=30"`
	LedgerConfirmTimeoutSec int `env:"LEDGER_CONFIRM_TIMEOUT_SEC,default=120"`
	BatchConcurrency        int `env:"BATCH_CONCURRENCY,default=1"`
	WorkerConsumers         int `env:"WORKER_CONSUMERS,default=2"`
	RateLimitPerSec         int `env:"RATE_LIMIT_PER_SEC,default=100"`
	LedgerRateLimitPerSec   int `env:"LEDGER_RATE_LIMIT_PER_SEC,default=0"`
	MaxUploadMB             int `env:"MAX_UPLOAD_MB,default=32"`

	APIPort    int    `env:"API_PORT,default=8080"`
	WorkerPort int    `env:"WORKER_PORT,default=8081"`
	LogLevel   string `env:"LOG_LEVEL,default=info"`
	LogFormat  string `env:"LOG_FORMAT,default=json"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// RequireAPI checks the settings the HTTP API cannot start without.
func (c *Config) RequireAPI() error {
	return requireSet(map[string]string{
		"DATABASE_DSN": c.DatabaseDSN,
		"RABBITMQ_URL": c.RabbitMQURL,
		"REDIS_URL":    c.RedisURL,
	})
}

// RequireWorker checks the settings the batch worker cannot start without.
func (c *Config) RequireWorker() error {
	if err := c.RequireAPI(); err != nil {
		return err
	}
	return c.RequireLedger()
}

// RequireLedger checks the settings needed to sign and send ledger transactions.
func (c *Config) RequireLedger() error {
	return requireSet(map[string]string{
		"LEDGER_RPC_URL":     c.LedgerRPCURL,
		"ISSUER_PRIVATE_KEY": c.IssuerPrivateKey,
	})
}

func (c *Config) ContentUploadTimeout() time.Duration {
	return time.Duration(c.ContentUploadTimeoutSec) * time.Second
}

func (c *Config) LedgerConfirmTimeout() time.Duration {
	return time.Duration(c.LedgerConfirmTimeoutSec) * time.Second
}

// Ledger returns the ledger client settings.
func (c *Config) Ledger() ledger.Config {
	return ledger.Config{
		RPCURL:          c.LedgerRPCURL,
		ContractAddress: c.LedgerContractAddress,
		ArtifactPath:    c.LedgerArtifactPath,
		ChainID:         c.LedgerChainID,
		PrivateKey:      c.IssuerPrivateKey,
		ConfirmTimeout:  c.LedgerConfirmTimeout(),
		SubmitRetries:   c.LedgerSubmitRetries,
	}
}

// MaxUploadBytes is the request body limit of the HTTP API.
func (c *Config) MaxUploadBytes() int {
	return c.MaxUploadMB * 1024 * 1024
}

func requireSet(values map[string]string) error {
	var missing []string
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}
