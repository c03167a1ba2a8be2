package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arloliu/go-instrument/codec"
	"github.com/arloliu/go-instrument/metrics"
)

type pollSpec struct {
	class    string
	action   string
	interval time.Duration
}

func parsePollSpec(s string) (pollSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return pollSpec{}, fmt.Errorf("instrumentctl: poll %q is not CLASS:ACTION:INTERVAL", s)
	}

	interval, err := time.ParseDuration(parts[2])
	if err != nil {
		return pollSpec{}, fmt.Errorf("instrumentctl: poll %q: %w", s, err)
	}

	return pollSpec{class: parts[0], action: parts[1], interval: interval}, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		listen  string
		polls   []string
		streams []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll devices, log streaming classes and export prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			specs := make([]pollSpec, 0, len(polls))
			for _, p := range polls {
				spec, err := parsePollSpec(p)
				if err != nil {
					return err
				}
				specs = append(specs, spec)
			}

			ctx := cmd.Context()
			mgr, err := opts.openManager(ctx, cmd)
			if err != nil {
				return err
			}
			defer mgr.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			exporter, err := metrics.NewExporter(reg)
			if err != nil {
				return err
			}
			if err := exporter.RegisterAll(mgr.Devices()...); err != nil {
				return err
			}

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			report := func(class, action string, res codec.Result) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "%s %s %s", time.Now().Format(time.RFC3339), class, action)
				if res.HasValue {
					fmt.Fprintf(out, " %g", res.Value)
				}
				for k, v := range res.Values {
					fmt.Fprintf(out, " %s=%v", k, v)
				}
				fmt.Fprintln(out)
			}

			for _, spec := range specs {
				err := mgr.StartPolling(spec.class, spec.action, spec.interval, func(res codec.Result, err error) {
					if err == nil {
						report(spec.class, spec.action, res)
					}
				})
				if err != nil {
					return err
				}
			}
			for _, class := range streams {
				if err := mgr.StartLogging(class, func(res codec.Result) { report(class, res.Action, res) }); err != nil {
					return err
				}
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
			srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&listen, "listen", ":9100", "metrics listen address")
	flags.StringArrayVar(&polls, "poll", nil, "CLASS:ACTION:INTERVAL to poll, repeatable")
	flags.StringArrayVar(&streams, "stream", nil, "streaming CLASS to log, repeatable")

	return cmd
}
