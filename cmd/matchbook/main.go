package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/streamingfast/logging"
	"go.uber.org/zap/zapcore"
)

// Version value, injected via go build `ldflags` at build time
var Version = "dev"

// Commit sha1 value, injected via go build `ldflags` at build time
var Commit = ""

var RootCmd = &cobra.Command{Use: "matchbook", Short: "Deterministic limit order matching engine and settlement ledger"}

func init() {
	RootCmd.Version = version()
	RootCmd.SilenceUsage = true

	RootCmd.PersistentFlags().String("config", "", "YAML configuration file. No file is loaded when empty.")
	RootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	RootCmd.PersistentFlags().String("program-id", defaultProgramID, "Base58 program identity every address is derived from")
	RootCmd.PersistentFlags().String("server-addr", "localhost:9000", "gRPC address of a running matchbook server, for client commands")

	RootCmd.PersistentPreRunE = setupCmd
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setupCmd binds the flags of the executing command into viper, loads the
// optional config file and instantiates the loggers.
func setupCmd(cmd *cobra.Command, _ []string) error {
	viper.SetEnvPrefix("MATCHBOOK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %q", file)
		}
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	logging.InstantiateLoggers(logging.WithDefaultLevel(level))
	return nil
}

func version() string {
	shortCommit := Commit
	if len(shortCommit) >= 7 {
		shortCommit = shortCommit[0:7]
	}
	if len(shortCommit) == 0 {
		shortCommit = "adhoc"
	}
	return Version + "-" + shortCommit
}
