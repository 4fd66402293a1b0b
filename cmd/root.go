package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/auditpump/auditpump/internal/config"
	"github.com/auditpump/auditpump/internal/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "auditpump",
	Short: "Continuous audit-log poller and forwarder",
	Long: `auditpump polls paginated audit-log events from a remote API,
deduplicates them against persisted progress, and forwards new events to a
file, syslog or HTTP destination. It is meant to run unattended, surviving
token expiry, transient network failures and process restarts.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command execution failed", zap.Error(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/auditpump/auditpump.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		viper.AddConfigPath(".")
		viper.AddConfigPath(home + "/.config/auditpump")
		viper.SetConfigType("yaml")
		viper.SetConfigName("auditpump")
	}

	viper.SetEnvPrefix("AUDITPUMP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	configErr := viper.ReadInConfig()

	// The effective level resolves through viper so the flag, the
	// AUDITPUMP_LOG_LEVEL env var and a config-file log_level all apply.
	if err := logger.Init(viper.GetString("log_level")); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if configErr == nil {
		logger.Info("Using config file", zap.String("file", viper.ConfigFileUsed()))
	}
}
