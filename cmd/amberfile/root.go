package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bernedogit/amber-sub001/internal/config"
	"github.com/bernedogit/amber-sub001/internal/logging"
	"github.com/bernedogit/amber-sub001/internal/metrics"
)

// globalFlags holds the persistent flag values shared by every
// subcommand; populated by rootCmd's PersistentPreRunE before any
// subcommand's RunE runs.
type globalFlags struct {
	configPath  string
	keyringPath string
	blockSize   uint32
	blockFiller uint32
	shifts      int
	noExpand    bool
	logLevel    string
	logFormat   string
}

var flags globalFlags

// app bundles the process-wide collaborators a subcommand needs,
// assembled once in PersistentPreRunE from the resolved config.
type app struct {
	cfg *config.Config
	log *slog.Logger
	met *metrics.Metrics
}

var theApp *app

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amberfile",
		Short: "amberfile - authenticated file encryption, signing and steganography",
		Long: `amberfile encrypts, decrypts, signs, verifies, hides and reveals files
using an authenticated block-stream cipher, with recipients addressed
either by a shared password or by long-term public keys held in a
local key ring.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddGroup(&cobra.Group{ID: "crypto", Title: "Encrypt / Decrypt:"})
	cmd.AddGroup(&cobra.Group{ID: "stego", Title: "Steganography:"})
	cmd.AddGroup(&cobra.Group{ID: "keys", Title: "Key Management:"})
	cmd.AddGroup(&cobra.Group{ID: "other", Title: "Other:"})

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a YAML config file (defaults are used if omitted)")
	pf.StringVar(&flags.keyringPath, "keyring", "", "path to the key ring file (overrides config)")
	pf.Uint32Var(&flags.blockSize, "block-size", 0, "block-stream payload size per block (overrides config)")
	pf.Uint32Var(&flags.blockFiller, "block-filler", 0, "padding reserved per block (overrides config)")
	pf.IntVar(&flags.shifts, "shifts", 0, "scrypt cost parameter for password-derived keys (overrides config)")
	pf.BoolVar(&flags.noExpand, "no-expand", false, "use a block filler of 0 (no filler bytes in each block)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn, or error (overrides config)")
	pf.StringVar(&flags.logFormat, "log-format", "", "text or json (overrides config)")

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initApp()
	}

	for _, c := range []struct {
		cmd   *cobra.Command
		group string
	}{
		{encryptCmd(), "crypto"},
		{decryptCmd(), "crypto"},
		{hideCmd(), "stego"},
		{revealCmd(), "stego"},
		{genkeyCmd(), "keys"},
		{ringOpCmd(), "keys"},
		{signCmd(), "other"},
		{verifyCmd(), "other"},
		{packCmd(), "other"},
		{unpackCmd(), "other"},
	} {
		c.cmd.GroupID = c.group
		cmd.AddCommand(c.cmd)
	}

	return cmd
}

// initApp resolves the effective configuration (defaults, optional
// config file, then command-line overrides) and builds the shared
// logger/metrics collaborators every subcommand reads from theApp.
func initApp() error {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if flags.keyringPath != "" {
		cfg.Keystore.Path = flags.keyringPath
	}
	if flags.blockSize != 0 {
		cfg.Crypto.BlockSize = flags.blockSize
	}
	if flags.blockFiller != 0 {
		cfg.Crypto.BlockFiller = flags.blockFiller
	}
	if flags.shifts != 0 {
		cfg.Crypto.Shifts = flags.shifts
	}
	if flags.noExpand {
		cfg.Crypto.NoExpand = true
	}
	if cfg.Crypto.NoExpand {
		cfg.Crypto.BlockFiller = 0
	}
	if flags.logLevel != "" {
		cfg.Agent.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Agent.LogFormat = flags.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.NewLoggerWithWriter(cfg.Agent.LogLevel, cfg.Agent.LogFormat, os.Stderr)

	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		met = metrics.Default()
	} else {
		// An unregistered-with-the-default-registry collector still
		// needs somewhere to live; a private registry lets every
		// Record* call work identically whether or not metrics are
		// actually being scraped.
		met = metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	}

	theApp = &app{cfg: cfg, log: log, met: met}
	return nil
}
