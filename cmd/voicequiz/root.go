package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bclt-academy/voicequiz/internal/dotenv"
	"github.com/bclt-academy/voicequiz/pkg/config"
)

// cli carries the state shared by every subcommand.
type cli struct {
	v         *viper.Viper
	cfgPath   string
	cfg       config.Config
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	app := &cli{v: config.New()}

	root := &cobra.Command{
		Use:           "voicequiz",
		Short:         "Voice conversation quiz for BCLT Academy learners",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.logCloser != nil {
				_ = app.logCloser.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&app.cfgPath, "config", "", "config file (yaml, json or toml); defaults to $BCLT_CONFIG")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console or json)")
	pf.String("log-file", "", "write logs to this file")
	pf.String("api-base-url", "", "voice quiz API base URL")
	app.bind(pf, map[string]string{
		"log.level":    "log-level",
		"log.format":   "log-format",
		"log.file":     "log-file",
		"api.base_url": "api-base-url",
	})

	root.AddCommand(
		newRunCmd(app),
		newServeCmd(app),
		newDevicesCmd(app),
	)
	return root
}

// bind maps config keys to flags. Flags only override when set.
func (app *cli) bind(fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if f := fs.Lookup(flag); f != nil {
			_ = app.v.BindPFlag(key, f)
		}
	}
}

func (app *cli) load(cmd *cobra.Command) error {
	if _, err := dotenv.LoadFiles(".env.local", ".env"); err != nil {
		return err
	}
	path := app.cfgPath
	if path == "" {
		path = app.v.GetString("config")
	}
	cfg, err := config.Load(app.v, path)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	app.cfg = cfg

	closer, err := setupLogging(cfg.Log, cmd.ErrOrStderr(), cmd.Name() == "run")
	if err != nil {
		return err
	}
	app.logCloser = closer
	return nil
}
