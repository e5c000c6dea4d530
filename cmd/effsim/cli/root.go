// Package cli implements the effsim command: a tool to replay retry policies
// and exercise parallel expressions on a bounded pool.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "EFFSIM"

// Execute is the entry point called from cmd/effsim/main.go.
func Execute() {
	if err := NewRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree around v. Flags, the config file and
// EFFSIM_* environment variables all resolve through v.
func NewRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:          "effsim",
		Short:        "Replay retry policies and exercise parallel expressions",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cfgFile, cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: ./effsim.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level: debug | info | warn | error")
	root.PersistentFlags().String("log-format", "text", "log format: text | json")
	root.PersistentFlags().String("policies", "policies.yaml", "policy spec file")
	bindFlag(v, "log_level", root.PersistentFlags(), "log-level")
	bindFlag(v, "log_format", root.PersistentFlags(), "log-format")
	bindFlag(v, "policies", root.PersistentFlags(), "policies")

	root.AddCommand(newSimulateCmd(v))
	root.AddCommand(newFanoutCmd(v))
	root.AddCommand(newInitCmd(v))
	root.AddCommand(newVersionCmd())
	return root
}

func initConfig(v *viper.Viper, cfgFile string, stderr io.Writer) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("effsim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.effsim")
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return fmt.Errorf("read config: %w", err)
		}
	} else {
		fmt.Fprintln(stderr, "config:", v.ConfigFileUsed())
	}
	return nil
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)).With(slog.String("service", "effsim"))
	}
	return slog.New(slog.NewTextHandler(w, opts)).With(slog.String("service", "effsim"))
}

func bindFlag(v *viper.Viper, viperKey string, fs *pflag.FlagSet, flagName string) {
	if err := v.BindPFlag(viperKey, fs.Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("bindFlag %q → %q: %v", flagName, viperKey, err))
	}
}
