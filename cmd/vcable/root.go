package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/opd-ai/vcable"
	"github.com/opd-ai/vcable/config"
	"github.com/opd-ai/vcable/loader"
	"github.com/opd-ai/vcable/plugins/loopback"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string
	builtin    bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "vcable",
		Short: "Route live audio through cable plugins",
		Long: `vcable loads cable plugins and routes host audio through the selected one.

Configuration is read from --config (YAML) and VCABLE_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "file with VCABLE_* variables, loaded before the configuration")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides the configuration")
	cmd.PersistentFlags().BoolVar(&opts.builtin, "builtin", true, "register the bundled loopback plugin")

	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))

	return cmd
}

// load resolves the configuration and applies the log level.
func (o *globalOptions) load() error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", o.envFile, err)
		}
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.ApplyLogLevel(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// sessionConfig builds the session configuration for the resolved settings.
func (o *globalOptions) sessionConfig() (*vcable.SessionConfig, error) {
	sc := &vcable.SessionConfig{
		SearchPaths: o.cfg.SearchPaths(),
		Prefix:      o.cfg.Plugins.Prefix,
	}

	if o.builtin {
		b, err := loopback.NewBuiltin(loopback.Config{
			BlockFrames: o.cfg.Session.BlockFrames,
			Gain:        1,
		})
		if err != nil {
			return nil, fmt.Errorf("configure loopback: %w", err)
		}
		sc.Builtins = []loader.Builtin{b}
	}

	logrus.WithFields(logrus.Fields{
		"function":     "sessionConfig",
		"search_paths": sc.SearchPaths,
		"prefix":       sc.Prefix,
		"builtin":      o.builtin,
	}).Debug("Session configuration resolved")

	return sc, nil
}

// openSession creates a session for the resolved settings.
func (o *globalOptions) openSession() (*vcable.Session, error) {
	sc, err := o.sessionConfig()
	if err != nil {
		return nil, err
	}
	return vcable.New(sc), nil
}
