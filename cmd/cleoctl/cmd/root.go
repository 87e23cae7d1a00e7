package cmd

import (
	"context"
	"fmt"

	"github.com/jcodog/Cleo-Dashboard-sub001/config"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/bootstrap"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/credential"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/linkage"
	"github.com/jcodog/Cleo-Dashboard-sub001/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const AppName = "cleoctl"

// options are shared by every subcommand.
type options struct {
	cfgFile string
	output  string
	verbose bool

	cfg    *config.Config
	logger log.Logger
}

// services is what a subcommand works with. close releases the store and locker.
type services struct {
	store    bootstrap.Backend
	manager  *credential.Manager
	registry *linkage.Registry
	close    func()
}

// NewRootCmd builds the cleoctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           AppName,
		Short:         "cleoctl inspects and manages linked provider credentials",
		Long:          `A command-line tool that works directly against the configured credential store: list a user's linked providers, unlink one, and check whether a stored access token is usable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := zerolog.WarnLevel
			if opts.verbose {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
			opts.logger = log.NewZerologAdapter(level, true)

			switch opts.output {
			case outputJSON, outputYAML:
			default:
				return fmt.Errorf("unsupported output format %q, use json or yaml", opts.output)
			}

			cfg, err := config.LoadConfig(opts.cfgFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./cleo.yaml, /etc/cleo/cleo.yaml or $HOME/.cleo/cleo.yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputYAML, "output format: json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newLinksCmd(opts), newTokenCmd(opts))

	return rootCmd
}

func (o *options) open(ctx context.Context) (*services, error) {
	store, err := bootstrap.OpenStore(ctx, o.cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", o.cfg.StorageBackend, err)
	}

	locker, closeLocker, err := bootstrap.NewRefreshLocker(ctx, o.cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	manager := credential.NewManager(store, bootstrap.NewProviders(o.cfg),
		credential.WithLocker(locker),
		credential.WithLogger(o.logger),
	)
	registry := linkage.NewRegistry(store, linkage.WithLogger(o.logger))

	return &services{
		store:    store,
		manager:  manager,
		registry: registry,
		close: func() {
			closeLocker()
			_ = store.Close(context.Background())
		},
	}, nil
}

func requireFlag(cmd *cobra.Command, name string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return v, nil
}
