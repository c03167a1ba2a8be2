package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-instrument/catalog"
	"github.com/arloliu/go-instrument/instrument"
	"github.com/arloliu/go-instrument/internal/simulator"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/transport"
)

type rootOptions struct {
	configPath  string
	catalogPath string
	logLevel    string
	simulate    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "instrumentctl",
		Short:         "Talk to serial instruments through the recovery engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "deployment YAML file")
	flags.StringVar(&opts.catalogPath, "catalog", "", "class catalog YAML applied over the built-in classes")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error), overrides the deployment")
	flags.BoolVar(&opts.simulate, "simulate", false, "use in-memory instruments instead of the configured ports")

	cmd.AddCommand(
		newListCmd(opts),
		newSendCmd(opts),
		newStatusCmd(opts),
		newServeCmd(opts),
	)

	return cmd
}

func (o *rootOptions) catalog() (*catalog.Catalog, error) {
	cat := catalog.Builtin()
	if o.catalogPath != "" {
		if err := cat.LoadFile(o.catalogPath); err != nil {
			return nil, err
		}
	}

	return cat, nil
}

func (o *rootOptions) setupLogger(cfgLevel string, w io.Writer) logger.Logger {
	name := cfgLevel
	if o.logLevel != "" {
		name = o.logLevel
	}

	level, ok := logger.ParseLevel(name)
	if !ok {
		level = logger.WarnLevel
	}

	l := logger.NewSlogWithWriter(w, level, false)
	logger.SetLogger(l)

	return l
}

// openManager loads the deployment and opens its ports.
func (o *rootOptions) openManager(ctx context.Context, cmd *cobra.Command) (*instrument.Manager, error) {
	if o.configPath == "" {
		return nil, fmt.Errorf("instrumentctl: --config is required")
	}

	cfg, err := instrument.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	cat, err := o.catalog()
	if err != nil {
		return nil, err
	}

	opts := []instrument.Option{instrument.WithLogger(o.setupLogger(cfg.LogLevel, cmd.ErrOrStderr()))}
	if o.simulate {
		opts = append(opts, instrument.WithDialerFunc(simulatedDialer))
	}

	mgr := instrument.NewManager(cat, opts...)
	if err := mgr.Open(ctx, cfg); err != nil {
		return nil, err
	}

	return mgr, nil
}

func simulatedDialer(p instrument.PortConfig, _ ...transport.Option) (transport.Dialer, error) {
	return simulator.ForClasses(p.Name, p.Classes...)
}

// parseParams converts command line arguments to integers or floats where
// they parse as such.
func parseParams(args []string) []any {
	params := make([]any, len(args))
	for i, arg := range args {
		if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
			params[i] = n
		} else if f, err := strconv.ParseFloat(arg, 64); err == nil {
			params[i] = f
		} else {
			params[i] = arg
		}
	}

	return params
}
