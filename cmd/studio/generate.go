package main

import (
	"fmt"
	"os"

	"github.com/KingHippopotamus/pmax-helper/prompt"
	"github.com/spf13/cobra"
)

var (
	promptFile string
	square     bool
	outputPath string
)

var generateCmd = &cobra.Command{
	Use:   "generate <page-url>",
	Short: "Analyze a landing page and render a marketing video from it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pageURL := args[0]

		if err := runWithSpinner("Analyzing page", func() error {
			return session.Analyze(ctx, pageURL)
		}); err != nil {
			return err
		}

		switch {
		case promptFile != "":
			data, err := os.ReadFile(promptFile)
			if err != nil {
				return fmt.Errorf("read prompt file: %w", err)
			}
			session.EditPrompt(string(data))
		case square:
			session.RegenerateWithOptions(prompt.Options{Square: true})
		}
		printState(session.Snapshot())

		if err := runWithSpinner("Generating video", func() error {
			return session.Generate(ctx, pageURL)
		}); err != nil {
			printSuggestions()
			return err
		}

		result := session.Snapshot().Result
		fmt.Println(successStyle.Render("✓ Video ready: " + result.VideoURL))

		if outputPath == "" {
			return nil
		}
		return downloadTo(cmd, outputPath)
	},
}

func init() {
	generateCmd.Flags().StringVar(&promptFile, "prompt-file", "", "Send this file as the prompt instead of the synthesized one")
	generateCmd.Flags().BoolVar(&square, "square", false, "Ask for a 1:1 square composition")
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Download the finished video to this file")
	rootCmd.AddCommand(generateCmd)
}

func printSuggestions() {
	result := session.Snapshot().Result
	if result == nil || len(result.Suggestions) == 0 {
		return
	}
	fmt.Println(errorStyle.Render(result.Error))
	for _, s := range result.Suggestions {
		fmt.Println("  • " + s)
	}
}
