package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"flap/internal/config"
	"flap/internal/store"
)

func newCircuitsCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circuits",
		Short: "Inspect and flip circuit breakers",
	}
	cmd.AddCommand(newCircuitsListCommand(loadConfig))
	cmd.AddCommand(newCircuitsSetCommand(loadConfig))
	cmd.AddCommand(newCircuitsResetCommand(loadConfig))
	return cmd
}

func withApp(loadConfig func() (config.Config, error), fn func(ctx context.Context, application *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	application, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer application.Close()
	return fn(ctx, application)
}

func newCircuitsListCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every circuit and its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(loadConfig, func(ctx context.Context, application *app) error {
				circuits := application.breaker.AllCircuits(ctx)
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, bold("CIRCUIT\tTYPE\tSTATE\tFAILURES\tCHANGED"))
				for _, cs := range circuits {
					changed := ""
					if cs.StateChangedAt != nil {
						changed = cs.StateChangedAt.Local().Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
						cs.CircuitID, cs.CircuitType, colorState(cs.State),
						cs.FailureCount, cs.FailureThreshold, gray(changed))
				}
				return w.Flush()
			})
		},
	}
}

func colorState(state store.State) string {
	switch state {
	case store.StateOn:
		return green(string(state))
	case store.StateOff:
		return red(string(state))
	default:
		return yellow(string(state))
	}
}

func newCircuitsSetCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "set <circuit> <on|off>",
		Short: "Manually flip a circuit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state := store.State(args[1])
			if state != store.StateOn && state != store.StateOff {
				return fmt.Errorf("state must be on or off, got %q", args[1])
			}
			return withApp(loadConfig, func(ctx context.Context, application *app) error {
				if application.breaker.CircuitStatus(ctx, args[0]) == nil {
					return fmt.Errorf("unknown circuit %q", args[0])
				}
				application.breaker.SetState(ctx, args[0], state)
				fmt.Println(args[0], "->", colorState(state))
				return nil
			})
		},
	}
}

func newCircuitsResetCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <circuit>",
		Short: "Force a circuit on and zero its counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(loadConfig, func(ctx context.Context, application *app) error {
				if application.breaker.CircuitStatus(ctx, args[0]) == nil {
					return fmt.Errorf("unknown circuit %q", args[0])
				}
				application.breaker.ResetProviderCircuit(ctx, args[0])
				fmt.Println(args[0], "->", colorState(store.StateOn))
				return nil
			})
		},
	}
}
