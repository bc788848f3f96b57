package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/soulmint/soulmint/pkg/config"
	"github.com/soulmint/soulmint/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "soulmint",
	Short: "Soul progression and gated-chat engine",
	Long: `soulmint runs the progression engine behind minted digital companions:
chat turns gated by unlocked languages, experience accounting, level-ups,
rarity transitions and LLM-driven personality evolution.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		defaultConfigPath(), "path to the config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(soulCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		v := version
		if gitCommit != "" {
			v += fmt.Sprintf(" (git: %s)", gitCommit)
		}
		fmt.Printf("soulmint %s\n", v)
	},
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".soulmint", "config.json")
}

// loadConfig reads the config and enables file logging next to the
// database so every command shares one log stream.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logDir := filepath.Dir(cfg.Storage.Path)
	if err := logger.EnableFileLogging(filepath.Join(logDir, "soulmint.log")); err != nil {
		logger.WarnCF("cli", "file logging disabled", map[string]any{"error": err.Error()})
	}
	return cfg, nil
}
