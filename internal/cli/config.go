package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"proofpress/internal/ledger"
	"proofpress/internal/poller"
)

// Config is the proofctl configuration. Values come from flags, PROOFCTL_*
// environment variables and .proofctl.yaml, in that order of precedence.
type Config struct {
	Server    string        `mapstructure:"server"`
	Principal string        `mapstructure:"principal"`
	Gateway   string        `mapstructure:"gateway"`
	Attempts  int           `mapstructure:"attempts"`
	Interval  time.Duration `mapstructure:"interval"`
	LogLevel  string        `mapstructure:"log_level"`
	Ledger    LedgerConfig  `mapstructure:"ledger"`
}

// LedgerConfig selects the chain and the author's keystore.
type LedgerConfig struct {
	RPCURL                string `mapstructure:"rpc_url"`
	ChainID               int64  `mapstructure:"chain_id"`
	Keystore              string `mapstructure:"keystore"`
	KeystorePassword      string `mapstructure:"keystore_password"`
	RegistrationWorkflows string `mapstructure:"registration_workflows"`
	SPGNFTContract        string `mapstructure:"spg_nft_contract"`
	IPAssetRegistry       string `mapstructure:"ip_asset_registry"`
	LicensingModule       string `mapstructure:"licensing_module"`
	LicenseRegistry       string `mapstructure:"license_registry"`
	LicenseTemplate       string `mapstructure:"license_template"`
	LicenseTermsID        int64  `mapstructure:"license_terms_id"`
}

// LoadConfig reads configuration into a Config. A missing config file is
// not an error.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".proofctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/proofctl")
	}

	v.SetEnvPrefix("PROOFCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	aeneid := ledger.AeneidDefaults()

	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("principal", "")
	v.SetDefault("gateway", "https://gateway.pinata.cloud")
	v.SetDefault("attempts", poller.DefaultAttempts)
	v.SetDefault("interval", poller.DefaultInterval)
	v.SetDefault("log_level", "info")

	v.SetDefault("ledger.rpc_url", "https://aeneid.storyrpc.io")
	v.SetDefault("ledger.chain_id", aeneid.ChainID)
	v.SetDefault("ledger.keystore", "")
	v.SetDefault("ledger.keystore_password", "")
	v.SetDefault("ledger.registration_workflows", aeneid.RegistrationWorkflows.Hex())
	v.SetDefault("ledger.spg_nft_contract", aeneid.SPGNFTContract.Hex())
	v.SetDefault("ledger.ip_asset_registry", aeneid.IPAssetRegistry.Hex())
	v.SetDefault("ledger.licensing_module", aeneid.LicensingModule.Hex())
	v.SetDefault("ledger.license_registry", aeneid.LicenseRegistry.Hex())
	v.SetDefault("ledger.license_template", aeneid.LicenseTemplate.Hex())
	v.SetDefault("ledger.license_terms_id", aeneid.LicenseTermsID)
}

func (c *Config) validate() error {
	if c.Server == "" {
		return fmt.Errorf("server is required")
	}
	if c.Attempts < 1 {
		return fmt.Errorf("attempts must be at least 1, got %d", c.Attempts)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	return nil
}

// StoryConfig converts the ledger section into a registrar configuration.
func (c LedgerConfig) StoryConfig() (ledger.StoryConfig, error) {
	sc := ledger.StoryConfig{ChainID: c.ChainID, LicenseTermsID: c.LicenseTermsID}
	addrs := []struct {
		key   string
		value string
		dst   *common.Address
	}{
		{"ledger.registration_workflows", c.RegistrationWorkflows, &sc.RegistrationWorkflows},
		{"ledger.spg_nft_contract", c.SPGNFTContract, &sc.SPGNFTContract},
		{"ledger.ip_asset_registry", c.IPAssetRegistry, &sc.IPAssetRegistry},
		{"ledger.licensing_module", c.LicensingModule, &sc.LicensingModule},
		{"ledger.license_registry", c.LicenseRegistry, &sc.LicenseRegistry},
		{"ledger.license_template", c.LicenseTemplate, &sc.LicenseTemplate},
	}
	for _, a := range addrs {
		if !common.IsHexAddress(a.value) {
			return ledger.StoryConfig{}, fmt.Errorf("%s is not a valid address: %q", a.key, a.value)
		}
		*a.dst = common.HexToAddress(a.value)
	}
	if err := sc.Validate(); err != nil {
		return ledger.StoryConfig{}, err
	}
	return sc, nil
}
