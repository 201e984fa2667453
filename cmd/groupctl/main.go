// Command groupctl loads a job definition, simulates the allocation of its
// workers and prints or publishes the configuration every task receives.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/taskgraph/groupcomm/config"
	"go.uber.org/zap"
)

var (
	cfgFile     string
	logLevel    string
	metricsAddr string
	timeout     = 30 * time.Second
)

var rootCmd = &cobra.Command{
	Use:           "groupctl",
	Short:         "Plans and publishes group communication configurations.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "job.yaml", "job definition file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "give up if the groups are not published in time")
	rootCmd.AddCommand(planCmd(), publishCmd())

	if err := rootCmd.Execute(); err != nil {
		logger, _ := zap.NewProduction()
		logger.Error("groupctl failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func loadJob() (*config.Job, error) {
	v := viper.New()
	v.SetConfigFile(cfgFile)
	config.BindEnv(v)
	config.SetDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return config.Load(v)
}
