// Package cmd wires the scanner's cobra command tree: the root command
// binds global flags through viper, builds the zap logger, and dispatches
// to the scan and gencert subcommands.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tlssak/scanner/utils/log"
)

// Root owns the cobra root command and the subcommands registered against
// it. One Root is built per process invocation.
type Root struct {
	logger      *zap.Logger
	subCommands []Plugins
}

func newRoot() *Root {
	return &Root{subCommands: []Plugins{}}
}

// Execute builds the root command and every subcommand, then runs cobra.
// Called once from main.main.
func Execute() {
	newRoot().execute()
}

// Plugins is the contract a subcommand satisfies to be registered against
// the root command. GetCmd receives a getLogger func rather than a
// *zap.Logger directly
// because subcommands are built (and their flags bound) before
// PersistentPreRunE constructs the real logger; getLogger is only called
// from inside a RunE, by which point it is populated.
type Plugins interface {
	GetCmd(getLogger func() *zap.Logger) *cobra.Command
}

func (r *Root) RegisterPlugin(p Plugins) {
	r.subCommands = append(r.subCommands, p)
}

var rootExamples = `
  Scan a server's TLS posture:
    tlssak scan --target example.com --port 443

  Scan behind STARTTLS:
    tlssak scan --target mail.example.com --port 25 --starttls smtp

  Generate a throwaway self-signed certificate for local testing:
    tlssak gencert --host localhost --out ./dev
`

func (r *Root) execute() {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:     "tlssak",
		Short:   "TLS posture scanner",
		Example: rootExamples,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().String("target", "", "host to scan (required); the port comes from --port")
	rootCmd.PersistentFlags().Uint16("port", 443, "TCP port to connect to")
	rootCmd.PersistentFlags().String("starttls", "", "plaintext upgrade protocol before the handshake: smtp, ftp, imap, pop3")
	rootCmd.PersistentFlags().String("protocol", "auto", "client protocol version to offer: auto, ssl3.0, tls1.0, tls1.1, tls1.2, tls1.3")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "per-read timeout")
	rootCmd.PersistentFlags().StringSlice("trust-store", nil, "additional PEM/DER trust anchor files")
	rootCmd.PersistentFlags().String("config", "", "path to a config file (yaml/json/toml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug-level logging")
	rootCmd.PersistentFlags().Bool("disable-ansi", false, "disable ANSI color in log and report output")
	rootCmd.PersistentFlags().StringSlice("debug-modules", nil, "restrict debug logging to these logger names")

	if err := v.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintln(os.Stderr, "failed to bind flags:", err)
		os.Exit(1)
	}
	v.SetEnvPrefix("TLSSAK")
	v.AutomaticEnv()

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cfgFile := v.GetString("config"); cfgFile != "" {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}

		logger, logFile, err := log.New()
		if err != nil {
			return err
		}
		r.logger = logger
		cmd.Root().PersistentPostRunE = func(*cobra.Command, []string) error {
			return logFile.Close()
		}

		if v.GetBool("debug") {
			if logger, err = log.ChangeLogLevel(zapcore.DebugLevel); err != nil {
				return err
			}
			r.logger = logger
		}
		if mods := v.GetStringSlice("debug-modules"); len(mods) > 0 {
			set := make(map[string]bool, len(mods))
			for _, m := range mods {
				set[m] = true
			}
			log.SetDebugModules(set)
		}
		if v.GetBool("disable-ansi") {
			if logger, err = log.ChangeColorEncoding(); err != nil {
				return err
			}
			r.logger = logger
		}
		return nil
	}

	getLogger := func() *zap.Logger { return r.logger }

	r.subCommands = append(r.subCommands, NewCmdScan(v), NewCmdGenCert(v))
	for _, sc := range r.subCommands {
		rootCmd.AddCommand(sc.GetCmd(getLogger))
	}

	if err := rootCmd.Execute(); err != nil {
		if r.logger != nil {
			r.logger.Error("tlssak exited with an error", zap.Error(err))
		}
		os.Exit(1)
	}
}
