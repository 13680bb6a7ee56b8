// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"proofpress/internal/ledger"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host      string
	Port      string
	Env       string // "development", "production", "testing"
	LogLevel  string
	LogFormat string // "text" or "json"; empty picks by Env

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string
	ValkeyDB       int

	// Pinata pinning service and the gateway documents are read from
	PinataJWT    string
	PinataAPIURL string
	IPFSGateway  string

	// Optional S3-compatible mirror of uploaded metadata documents
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string

	// Ledger registration
	LedgerSigner           string // "service" or "user"
	LedgerRPCURL           string
	LedgerChainID          int64
	LedgerPrivateKey       string
	LedgerKeystorePath     string
	LedgerKeystorePassword string
	RegistrationWorkflows  string
	SPGNFTContract         string
	IPAssetRegistry        string
	LicensingModule        string
	LicenseRegistry        string
	LicenseTemplate        string
	LicenseTermsID         int64
	LicenseURI             string

	// Workflow timeouts
	UploadTimeout   time.Duration
	RegisterTimeout time.Duration
	PublishLockTTL  time.Duration

	// Per-IP API rate limit
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode or a numeric value does not parse.
func Load() (*Config, error) {
	aeneid := ledger.AeneidDefaults()

	cfg := &Config{
		Host:      envOrDefault("APP_HOST", "0.0.0.0"),
		Port:      envOrDefault("APP_PORT", "8080"),
		Env:       envOrDefault("APP_ENV", "development"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: os.Getenv("LOG_FORMAT"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "proofpress"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "proofpress"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		PinataJWT:    os.Getenv("PINATA_JWT"),
		PinataAPIURL: envOrDefault("PINATA_API_URL", "https://api.pinata.cloud"),
		IPFSGateway:  envOrDefault("IPFS_GATEWAY", "https://gateway.pinata.cloud"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    envOrDefault("S3_REGION", "fsn1"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    envOrDefault("S3_BUCKET", "proofpress-metadata"),

		LedgerSigner:           envOrDefault("LEDGER_SIGNER", string(ledger.ModeUser)),
		LedgerRPCURL:           envOrDefault("LEDGER_RPC_URL", "https://aeneid.storyrpc.io"),
		LedgerPrivateKey:       os.Getenv("LEDGER_PRIVATE_KEY"),
		LedgerKeystorePath:     os.Getenv("LEDGER_KEYSTORE_PATH"),
		LedgerKeystorePassword: os.Getenv("LEDGER_KEYSTORE_PASSWORD"),
		RegistrationWorkflows:  envOrDefault("LEDGER_REGISTRATION_WORKFLOWS", aeneid.RegistrationWorkflows.Hex()),
		SPGNFTContract:         envOrDefault("LEDGER_SPG_NFT_CONTRACT", aeneid.SPGNFTContract.Hex()),
		IPAssetRegistry:        envOrDefault("LEDGER_IP_ASSET_REGISTRY", aeneid.IPAssetRegistry.Hex()),
		LicensingModule:        envOrDefault("LEDGER_LICENSING_MODULE", aeneid.LicensingModule.Hex()),
		LicenseRegistry:        envOrDefault("LEDGER_LICENSE_REGISTRY", aeneid.LicenseRegistry.Hex()),
		LicenseTemplate:        envOrDefault("LEDGER_LICENSE_TEMPLATE", aeneid.LicenseTemplate.Hex()),
		LicenseURI:             os.Getenv("LICENSE_URI"),
	}

	var err error
	if cfg.ValkeyDB, err = envInt("VALKEY_DB", 0); err != nil {
		return nil, err
	}
	if cfg.LedgerChainID, err = envInt64("LEDGER_CHAIN_ID", aeneid.ChainID); err != nil {
		return nil, err
	}
	if cfg.LicenseTermsID, err = envInt64("LICENSE_TERMS_ID", aeneid.LicenseTermsID); err != nil {
		return nil, err
	}
	if cfg.UploadTimeout, err = envDuration("UPLOAD_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RegisterTimeout, err = envDuration("REGISTER_TIMEOUT", 3*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PublishLockTTL, err = envDuration("PUBLISH_LOCK_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = envInt("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}

	if cfg.PublishLockTTL <= cfg.UploadTimeout+cfg.RegisterTimeout {
		return nil, fmt.Errorf("PUBLISH_LOCK_TTL (%s) must exceed UPLOAD_TIMEOUT + REGISTER_TIMEOUT (%s)",
			cfg.PublishLockTTL, cfg.UploadTimeout+cfg.RegisterTimeout)
	}

	if !ledger.Mode(cfg.LedgerSigner).Valid() {
		return nil, fmt.Errorf("LEDGER_SIGNER must be %q or %q", ledger.ModeService, ledger.ModeUser)
	}
	if cfg.SignerMode() == ledger.ModeService && cfg.LedgerPrivateKey == "" && cfg.LedgerKeystorePath == "" {
		return nil, fmt.Errorf("LEDGER_PRIVATE_KEY or LEDGER_KEYSTORE_PATH must be set when LEDGER_SIGNER=service")
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.PinataJWT == "" {
			return nil, fmt.Errorf("PINATA_JWT must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// ValkeyAddr returns the Valkey address (host:port).
func (c *Config) ValkeyAddr() string {
	return fmt.Sprintf("%s:%s", c.ValkeyHost, c.ValkeyPort)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// SignerMode returns who signs registration transactions.
func (c *Config) SignerMode() ledger.Mode {
	return ledger.Mode(c.LedgerSigner)
}

// License returns the license terms attached to registered articles.
func (c *Config) License() ledger.LicenseTerms {
	return ledger.NonCommercialSocialRemix(strconv.FormatInt(c.LicenseTermsID, 10), c.LicenseURI)
}

// StoryConfig converts the ledger settings into a registrar configuration.
func (c *Config) StoryConfig() (ledger.StoryConfig, error) {
	sc := ledger.StoryConfig{ChainID: c.LedgerChainID, LicenseTermsID: c.LicenseTermsID}
	addrs := []struct {
		env   string
		value string
		dst   *common.Address
	}{
		{"LEDGER_REGISTRATION_WORKFLOWS", c.RegistrationWorkflows, &sc.RegistrationWorkflows},
		{"LEDGER_SPG_NFT_CONTRACT", c.SPGNFTContract, &sc.SPGNFTContract},
		{"LEDGER_IP_ASSET_REGISTRY", c.IPAssetRegistry, &sc.IPAssetRegistry},
		{"LEDGER_LICENSING_MODULE", c.LicensingModule, &sc.LicensingModule},
		{"LEDGER_LICENSE_REGISTRY", c.LicenseRegistry, &sc.LicenseRegistry},
		{"LEDGER_LICENSE_TEMPLATE", c.LicenseTemplate, &sc.LicenseTemplate},
	}
	for _, a := range addrs {
		if !common.IsHexAddress(a.value) {
			return ledger.StoryConfig{}, fmt.Errorf("%s is not a valid address: %q", a.env, a.value)
		}
		*a.dst = common.HexToAddress(a.value)
	}
	if err := sc.Validate(); err != nil {
		return ledger.StoryConfig{}, err
	}
	return sc, nil
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s: %w", key, err)
	}
	return d, nil
}
