// Package cli provides the command-line interface for the driftscan network
// scanner. It implements the Cobra-based command structure for scanning,
// baseline comparison, and scan history inspection.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kallerud/driftscan/internal/config"
	"github.com/kallerud/driftscan/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "driftscan",
	Short: "Local network scanner with change detection",
	Long: `Driftscan sweeps a local network range for live hosts, probes each one
for open TCP ports, and records the results. Successive runs can be
compared against a baseline to surface ports that opened or closed
since the last scan.`,
	Version: getVersion(),
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./driftscan.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("driftscan")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("DRIFTSCAN")

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	initLogging()
}

// setConfigDefaults sets default values for configuration.
func setConfigDefaults() {
	viper.SetDefault("scan.ports", config.DefaultPorts)
	viper.SetDefault("scan.probe_timeout", config.DefaultProbeTimeout)
	viper.SetDefault("scan.concurrency", config.DefaultConcurrency)
	viper.SetDefault("scan.wait_window", config.DefaultWaitWindow)

	viper.SetDefault("output.prefix", config.DefaultOutputPrefix)
	viper.SetDefault("output.csv", true)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stderr")
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	logConfig := cfg.Logging
	if verbose {
		logConfig.Level = logging.LevelDebug
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}

// loadConfig loads the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.ConfigFileUsed())
}
