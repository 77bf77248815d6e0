package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flap/internal/config"
	"flap/internal/logging"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// NewRootCommand creates the flapd command tree.
func NewRootCommand() *cobra.Command {
	var configPath string
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "flapd",
		Short:         "AI-generated content daemon for a split-flap display",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				logging.SetLevel(logging.ParseLevel(logLevel))
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to flapd.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	viper.SetEnvPrefix("FLAP")
	viper.AutomaticEnv()
	if v := viper.GetString("CONFIG"); v != "" && configPath == "" {
		configPath = v
	}

	loadConfig := func() (config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		if logLevel == "" {
			logging.SetLevel(logging.ParseLevel(cfg.Logging.Level))
		}
		return cfg, nil
	}

	rootCmd.AddCommand(newServeCommand(loadConfig))
	rootCmd.AddCommand(newGenerateCommand(loadConfig))
	rootCmd.AddCommand(newCircuitsCommand(loadConfig))
	rootCmd.AddCommand(newVersionCommand())

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Println(red(err.Error()))
		return err
	})
	return rootCmd
}
