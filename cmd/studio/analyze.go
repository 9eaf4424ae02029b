package main

import (
	"fmt"

	"github.com/KingHippopotamus/pmax-helper/prompt"
	"github.com/KingHippopotamus/pmax-helper/studio"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <page-url>",
	Short: "Extract product info from a landing page and print the video prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runWithSpinner("Analyzing page", func() error {
			return session.Analyze(cmd.Context(), args[0])
		}); err != nil {
			return err
		}
		printState(session.Snapshot())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func printState(st studio.State) {
	fmt.Println(titleStyle.Render(st.PageURL))
	if st.ProductInfo != nil {
		for _, f := range prompt.Fields {
			value := st.ProductInfo.Get(f)
			if value == "" {
				value = "-"
			}
			fmt.Printf("%s %s\n", labelStyle.Render(f.Label()+":"), value)
		}
	}
	if st.CharacterImageURL != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("キャラクター画像:"), st.CharacterImageURL)
	}
	if st.Prompt != "" {
		fmt.Println()
		fmt.Println(promptStyle.Render(st.Prompt))
	}
}
