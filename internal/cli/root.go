// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package cli implements proofctl, the author-side command line for
// publishing articles and registering them with the author's own key.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"proofpress/internal/client"
	"proofpress/internal/ipfs"
	"proofpress/internal/ledger"
	"proofpress/internal/logging"
	"proofpress/internal/poller"
)

// Deps builds the collaborators of a command from the loaded config.
// Tests replace them with fakes.
type Deps struct {
	API       func(cfg *Config) poller.API
	Documents func(cfg *Config) ipfs.Fetcher
	Registrar func(ctx context.Context, cfg *Config) (ledger.Registrar, error)
}

// DefaultDeps talks to the configured server, gateway and chain.
func DefaultDeps() Deps {
	return Deps{
		API: func(cfg *Config) poller.API {
			return client.New(cfg.Server, client.WithPrincipal(cfg.Principal))
		},
		Documents: func(cfg *Config) ipfs.Fetcher {
			return ipfs.NewGateway(cfg.Gateway, 30*time.Second)
		},
		Registrar: keystoreRegistrar,
	}
}

// app carries state shared by the commands of one invocation.
type app struct {
	deps    Deps
	v       *viper.Viper
	cfgFile string
	cfg     *Config
}

// NewRootCommand builds the proofctl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	a := &app{deps: deps, v: viper.New()}

	root := &cobra.Command{
		Use:   "proofctl",
		Short: "Publish articles and register them on the ledger",
		Long: `proofctl publishes articles to a ProofPress server and, when the server
leaves signing to authors, registers them with your own keystore.

Example usage:
  proofctl publish --title "Field Notes" --content-file notes.html
  proofctl register 5b0e4b1e-54a2-4bb5-9f8f-0d3f1a1b2c3d
  proofctl status 5b0e4b1e-54a2-4bb5-9f8f-0d3f1a1b2c3d --json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is .proofctl.yaml)")
	pf.String("server", "", "API base URL")
	pf.String("principal", "", "identity sent as X-User-Id")
	pf.Int("attempts", 0, "polls while waiting for the upload")
	pf.Duration("interval", 0, "spacing between polls")
	pf.String("keystore", "", "encrypted keystore used to sign registrations")
	pf.String("log-level", "", "debug, info, warn or error")

	_ = a.v.BindPFlag("server", pf.Lookup("server"))
	_ = a.v.BindPFlag("principal", pf.Lookup("principal"))
	_ = a.v.BindPFlag("attempts", pf.Lookup("attempts"))
	_ = a.v.BindPFlag("interval", pf.Lookup("interval"))
	_ = a.v.BindPFlag("ledger.keystore", pf.Lookup("keystore"))
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))

	root.AddCommand(a.publishCommand(), a.registerCommand(), a.statusCommand())
	return root
}

// Execute runs proofctl with the process arguments.
func Execute() error {
	return NewRootCommand(DefaultDeps()).Execute()
}

func (a *app) initConfig(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, "text")
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	slog.Debug("configuration loaded", "server", cfg.Server, "attempts", cfg.Attempts, "interval", cfg.Interval)

	a.cfg = cfg
	return nil
}

func (a *app) poller(ctx context.Context) (*poller.Poller, error) {
	reg, err := a.deps.Registrar(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	return poller.New(
		a.deps.API(a.cfg),
		a.deps.Documents(a.cfg),
		reg,
		a.cfg.Ledger.ChainID,
		poller.WithAttempts(a.cfg.Attempts),
		poller.WithInterval(a.cfg.Interval),
	), nil
}

// keystoreRegistrar signs with the author's keystore against the
// configured chain.
func keystoreRegistrar(ctx context.Context, cfg *Config) (ledger.Registrar, error) {
	if cfg.Ledger.Keystore == "" {
		return nil, fmt.Errorf("a keystore is required to sign registrations (--keystore or PROOFCTL_LEDGER_KEYSTORE)")
	}
	sc, err := cfg.Ledger.StoryConfig()
	if err != nil {
		return nil, err
	}
	signer, err := ledger.LoadKeystoreSigner(cfg.Ledger.Keystore, cfg.Ledger.KeystorePassword)
	if err != nil {
		return nil, err
	}
	backend, err := ledger.Dial(ctx, cfg.Ledger.RPCURL)
	if err != nil {
		return nil, err
	}
	reg, err := ledger.NewStoryRegistrar(ctx, string(ledger.ModeUser), backend, signer, sc)
	if err != nil {
		backend.Close()
		return nil, err
	}
	slog.Debug("signing as", "address", signer.Address().Hex(), "chain", sc.ChainID)
	return reg, nil
}

// readContent returns the article body from a file, or stdin for "-".
func readContent(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read content: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(b), nil
}
