package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"flap/internal/config"
	"flap/internal/observability"
	"flap/internal/scheduler"
	"flap/internal/webui"
)

func newServeCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	var tracing bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: scheduler, web ui, and display pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tracerProvider, err := observability.NewTracerProvider(observability.TracingConfig{
				Enabled:     tracing,
				ServiceName: "flapd",
			})
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tracerProvider.Shutdown(shutdownCtx)
			}()

			application, err := buildApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer application.Close()

			fmt.Println(bold("flapd"), gray(version))

			g, ctx := errgroup.WithContext(ctx)

			// Keep the group alive until a signal arrives even when the web
			// server is disabled.
			g.Go(func() error {
				<-ctx.Done()
				return nil
			})

			if cfg.Server.Enabled {
				server := webui.NewServer(webui.Config{
					Addr:       cfg.Server.Addr,
					EnableCORS: true,
				}, application.breaker, application.orchestrator)
				application.relay.Set(server.OnFrame)
				g.Go(func() error { return server.Start(ctx) })
				fmt.Println(green("web ui"), "listening on", cfg.Server.Addr)
			}

			sched := scheduler.New(scheduler.Config{
				Enabled:           cfg.Scheduler.Enabled,
				MajorSchedule:     cfg.Scheduler.MajorSchedule,
				MinorUpdates:      cfg.Scheduler.MinorUpdates,
				UseToolGeneration: cfg.ToolLoop.Enabled,
				CycleTimeout:      cfg.Scheduler.CycleTimeout.Std(),
				ConcurrencyPolicy: cfg.Scheduler.ConcurrencyPolicy,
			}, application.orchestrator, nil)
			if err := sched.Start(ctx); err != nil {
				return err
			}

			// Put something on the board right away rather than waiting for
			// the first cron fire.
			if cfg.Scheduler.Enabled {
				go sched.RunMajorNow(ctx)
			}

			err = g.Wait()
			if cfg.Scheduler.Enabled {
				sched.Stop()
				<-sched.Done()
			}
			if err != nil && ctx.Err() == nil {
				return err
			}
			fmt.Println(yellow("flapd stopped"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&tracing, "trace", false, "export spans to stdout")
	return cmd
}
