// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the figure-watch CLI.
// Watches are persistent marketplace searches; "run" refreshes them in a
// batch, reconciles the listings against what is stored, and notifies new
// items. The other commands manage watches and diagnose queries.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/figure-watch/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds the tokens and cookies loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the figure-watch CLI.
var rootCmd = &cobra.Command{
	Use:   "figure-watch",
	Short: "Watch second-hand marketplaces for figure listings",
	Long: `figure-watch runs saved searches ("watches") against several second-hand
marketplaces, keeps the listings it has seen in a local database, and reports
the new ones.

A listing that disappears from a search is hidden for a grace period that
depends on the marketplace before it is deleted, so flaky pages do not make
items vanish and reappear as new.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", secrets.Keys(s))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./figure-watch.yaml or ~/.config/figure-watch/figure-watch.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output")
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("figure-watch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "figure-watch"))
		}
	}

	viper.SetEnvPrefix("FIGURE_WATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
