// Package cmd implements the CLI commands for mtcmidi.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jmacd/mtcmidi/internal/config"
	"github.com/jmacd/mtcmidi/internal/observability"
	"github.com/jmacd/mtcmidi/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	// logger is configured by initLogging before any command runs.
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:     "mtcmidi",
	Short:   "MIDI Time Code monitor and generator",
	Version: version.Short(),
	Long: `mtcmidi follows MIDI Time Code arriving on a MIDI input, or
generates it on a MIDI output.

Decoded timecode can be published over HTTP and OSC so that other
programs can chase it.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// Not bound to viper: they only override config when Changed().
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./mtcmidi.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/mtcmidi")
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("mtcmidi")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging builds the logger.  Priority, highest first: explicit
// flags, MTCMIDI_LOGGING_* env vars, config file, defaults.
func initLogging() error {
	logCfg := config.LoggingConfig{
		Level:      viper.GetString("logging.level"),
		Format:     viper.GetString("logging.format"),
		TimeFormat: viper.GetString("logging.time_format"),
	}

	if rootCmd.PersistentFlags().Changed("log-level") {
		logCfg.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		logCfg.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	logger = observability.WithApp(observability.NewLogger(logCfg), version.ApplicationName)
	return nil
}

// loadConfig decodes the global viper after flags have been bound.
func loadConfig() (*config.Config, error) {
	return config.FromViper(viper.GetViper())
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
