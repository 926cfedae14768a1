// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the patent-harvester CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/patent-harvester/internal/logger"
	"github.com/pdiddy/patent-harvester/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// log is built from the persistent flags before any subcommand runs.
	log logger.Logger = logger.NewNop()

	// loadedSecrets holds values read from .secrets/ at startup.
	loadedSecrets secrets.Secrets
)

var rootCmd = &cobra.Command{
	Use:   "patent-harvester",
	Short: "Crawl a patent search site and materialize inventor records",
	Long: `patent-harvester runs a query on a patent search site, expands every
inventor found on the result pages, collects each inventor's patents, and
extracts one record per patent page. Records are written as workbooks per
inventor, indexed in SQLite and archived as a zip file.

Subcommands: harvest (full pipeline), author (one author directory),
search (query the results index) and version.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logger.New(logger.Config{
			Level: viper.GetString("log-level"),
			JSON:  viper.GetBool("log-json"),
		})
		if err != nil {
			return err
		}
		log = l

		dir := viper.GetString("secrets-dir")
		s, err := secrets.Load(dir, log)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			log.Debug("loaded secrets", logger.Strings("keys", s.Keys()))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./patent-harvester.yaml or ~/.config/patent-harvester/patent-harvester.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.Bool("log-json", false, "log JSON lines instead of console output")
	pf.String("secrets-dir", ".secrets", "directory holding one secret per file")

	for _, name := range []string{"log-level", "log-json", "secrets-dir"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("patent-harvester")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "patent-harvester"))
		}
	}

	viper.SetEnvPrefix("PATENT_HARVESTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	// .env is optional; values already in the environment win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "reading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
