package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/config"
	"github.com/camden-git/attendancebackend/logger"
)

const serviceName = "attendance-core"

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "attendance-core",
	Short: "Attendance state engine and biometric match decision service",
	Long: `attendance-core records check-in, check-out and break events per subject and day,
derives status, worked time and overtime under versioned schedule policies, and decides
biometric matches against enrolled templates with a complete audit trail.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadRuntime reads the configuration and builds the process logger.
func loadRuntime() (config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}
