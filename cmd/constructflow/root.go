package main

import (
	"context"
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"constructflow/internal/app"
	"constructflow/internal/config"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type rootOptions struct {
	configPath string
	store      string

	cfg *config.Config
	log *logrus.Entry
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "constructflow",
		Short:         "Task approval workflow for construction projects",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath, !cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if opts.store != "" {
				cfg.Store = opts.store
			}
			opts.cfg = cfg
			opts.log = setupLogger(cfg)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "path to config yaml")
	cmd.PersistentFlags().StringVar(&opts.store, "store", "", "override store: postgres|memory")

	cmd.AddCommand(
		newServeCmd(opts),
		newTaskCmd(opts),
		newNotifyCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

// runtime wires stores and services for one-shot commands.
func (o *rootOptions) runtime(ctx context.Context) (*app.Runtime, error) {
	return app.NewRuntime(ctx, o.cfg, o.log)
}

func setupLogger(cfg *config.Config) *logrus.Entry {
	env := cfg.Env
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if cfg.Log.File != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   true,
		}))
	}
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	switch env {
	case envLocal:
		log.SetLevel(logrus.DebugLevel)
	case envDev:
		log.SetLevel(logrus.InfoLevel)
	case envProd:
		log.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
		log.SetLevel(logrus.WarnLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	return logrus.NewEntry(log).WithField("env", env)
}
