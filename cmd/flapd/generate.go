package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flap/internal/config"
	"flap/internal/content"
)

func newGenerateCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	var generatorID string
	var useTools bool
	var promptsOnly bool
	var toBoard bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one generation cycle and show the frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			application, err := buildApp(ctx, cfg, !toBoard)
			if err != nil {
				return err
			}
			defer application.Close()

			generated, err := application.orchestrator.GenerateAndSend(ctx, content.GenerationContext{
				UpdateType:        content.UpdateMajor,
				GeneratorID:       generatorID,
				UseToolGeneration: useTools,
				PromptsOnly:       promptsOnly,
			})
			if err != nil {
				return err
			}

			if promptsOnly {
				fmt.Println(bold("system prompt:"))
				fmt.Println(generated.Metadata[content.MetaPromptSystem])
				fmt.Println(bold("user prompt:"))
				fmt.Println(generated.Metadata[content.MetaPromptUser])
				return nil
			}

			fmt.Println()
			if generated.Metadata[content.MetaFallback] == true {
				fmt.Println(yellow("fallback content"), gray(fmt.Sprint(generated.Metadata[content.MetaFallbackReason])))
			} else {
				fmt.Println(green("generated by"), fmt.Sprint(generated.Metadata[content.MetaGenerator]),
					gray(fmt.Sprint("via ", generated.Metadata[content.MetaProvider])))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&generatorID, "generator", "", "force a specific generator id")
	cmd.Flags().BoolVar(&useTools, "tools", false, "negotiate content through the submit_content tool")
	cmd.Flags().BoolVar(&promptsOnly, "prompts-only", false, "print the prompts without calling the provider")
	cmd.Flags().BoolVar(&toBoard, "board", false, "send to the configured display instead of the terminal preview")
	return cmd
}
