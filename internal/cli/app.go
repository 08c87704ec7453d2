// Package cli wires the refmatch commands: the interactive terminal UI on
// the root command, a headless run command and a sheet lister.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nconklindev/refmatch/internal/config"
	"github.com/nconklindev/refmatch/internal/logging"
)

// App holds build information and the state shared by all commands.
type App struct {
	version string
	commit  string
	date    string

	v      *viper.Viper
	config *config.Config
	logger zerolog.Logger
}

// New creates an App with its own viper instance.
func New(version, commit, date string) *App {
	return &App{
		version: version,
		commit:  commit,
		date:    date,
		v:       viper.New(),
		logger:  logging.Nop,
	}
}

// Execute runs the refmatch CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "refmatch",
		Short: "Match raw data against a reference mapping",
		Long: `refmatch joins a raw table to a reference table on one or more key
columns and carries calibrated reference values into the raw data, either as
new columns or by replacing existing ones.

Unmatched keys can be filled in by hand, and the edits are written back into
an updated reference mapping. Without a subcommand refmatch starts the
interactive terminal UI.`,
		Version:           fmt.Sprintf("%s\ncommit: %s\nbuilt: %s", a.version, a.commit, a.date),
		Args:              cobra.NoArgs,
		PersistentPreRunE: a.setupCommand,
		RunE:              a.runTUI,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	rootCmd.SetVersionTemplate("refmatch {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.String(config.KeyConfig, "", "config file (default is ./.refmatch.yaml or $HOME/.refmatch.yaml)")
	flags.BoolP(config.KeyVerbose, "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolP(config.KeyQuiet, "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.Bool(config.KeyNoColor, false, "disable colored output")
	flags.String(config.KeyLogLevel, "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	flags.String(config.KeyLogFile, "", "write logs to this file (the terminal UI discards logs otherwise)")

	for _, key := range []string{config.KeyConfig, config.KeyVerbose, config.KeyQuiet, config.KeyNoColor, config.KeyLogLevel, config.KeyLogFile} {
		if err := a.v.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(fmt.Sprintf("Failed to bind %s flag: %v", key, err))
		}
	}

	rootCmd.AddCommand(a.newRunCommand(), a.newSheetsCommand())
	return rootCmd
}

// setupCommand loads configuration and installs the logger before any
// command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.config = cfg

	logConfig := cfg.LogConfig()
	// The terminal UI owns the screen.
	if !cmd.HasParent() && a.v.GetString(config.KeyLogFile) == "" {
		logConfig.Output = "discard"
	}
	logging.Configure(logConfig)
	a.logger = *logging.Default()

	cmd.SetContext(logging.WithLogger(cmd.Context(), &a.logger))

	if cfg.ConfigFile != "" {
		a.logger.Debug().Str("file", cfg.ConfigFile).Msg("Loaded config file")
	}
	return nil
}
