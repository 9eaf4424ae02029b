package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KingHippopotamus/pmax-helper/prompt"
	"github.com/KingHippopotamus/pmax-helper/studio"
	"github.com/KingHippopotamus/pmax-helper/video"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/spf13/cobra"
)

const (
	promptKeep       = "keep"
	promptRegenerate = "regenerate"
	promptEdit       = "edit"
)

var errSpinner = errors.New("spinner failed")

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Walk through analysis, prompt editing, generation and download",
	RunE:  runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fmt.Println(titleStyle.Render("P-MAX 動画ヘルパー"))

	pageURL, err := analyzeUntilDone(ctx)
	if err != nil {
		return err
	}

	for {
		if err := editFields(); err != nil {
			return err
		}
		if err := choosePrompt(); err != nil {
			return err
		}

		var generate bool
		if err := huh.NewConfirm().
			Title("この内容で動画を生成しますか？").
			Affirmative("生成する").
			Negative("やめる").
			Value(&generate).
			Run(); err != nil || !generate {
			return err
		}

		if err := runWithSpinner("動画を生成しています", func() error {
			return session.Generate(ctx, pageURL)
		}); err != nil {
			if !retryable(ctx, err) {
				return err
			}
			printSuggestions()
			continue
		}
		break
	}
	fmt.Println(successStyle.Render("✓ " + session.Snapshot().Result.VideoURL))

	var download bool
	if err := huh.NewConfirm().
		Title("動画をダウンロードしますか？").
		Value(&download).
		Run(); err != nil || !download {
		return err
	}
	return downloadTo(cmd, video.DownloadFilename)
}

// analyzeUntilDone asks for a URL until an analysis succeeds or the user aborts the form.
func analyzeUntilDone(ctx context.Context) (string, error) {
	var pageURL string
	for {
		if err := huh.NewInput().
			Title("LPのURL").
			Placeholder("https://example.com/lp").
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return studio.ErrEmptyURL
				}
				return nil
			}).
			Value(&pageURL).
			Run(); err != nil {
			return "", err
		}

		if err := runWithSpinner("ページを分析しています", func() error {
			return session.Analyze(ctx, pageURL)
		}); err != nil {
			if !retryable(ctx, err) {
				return "", err
			}
			continue
		}
		printState(session.Snapshot())
		return pageURL, nil
	}
}

// editFields shows every product field in one form and applies the changed ones.
func editFields() error {
	st := session.Snapshot()
	var current prompt.ProductInfo
	if st.ProductInfo != nil {
		current = *st.ProductInfo
	}

	values := make([]string, len(prompt.Fields))
	inputs := make([]huh.Field, len(prompt.Fields))
	for i, f := range prompt.Fields {
		values[i] = current.Get(f)
		inputs[i] = huh.NewInput().
			Title(f.Label()).
			Placeholder(f.Placeholder()).
			Value(&values[i])
	}

	characterURL := st.CharacterImageURL
	inputs = append(inputs, huh.NewInput().
		Title("キャラクター画像URL").
		Value(&characterURL))

	if err := huh.NewForm(huh.NewGroup(inputs...)).Run(); err != nil {
		return err
	}

	for i, f := range prompt.Fields {
		if values[i] == current.Get(f) {
			continue
		}
		if err := session.EditField(f, values[i]); err != nil {
			return err
		}
	}
	if characterURL != st.CharacterImageURL {
		session.SetCharacterImage(characterURL)
	}
	return nil
}

func choosePrompt() error {
	choice := promptKeep
	if err := huh.NewSelect[string]().
		Title("プロンプト").
		Options(
			huh.NewOption("そのまま使う", promptKeep),
			huh.NewOption("入力内容から再生成する", promptRegenerate),
			huh.NewOption("直接編集する", promptEdit),
		).
		Value(&choice).
		Run(); err != nil {
		return err
	}

	switch choice {
	case promptRegenerate:
		session.Regenerate()
	case promptEdit:
		text := session.Snapshot().Prompt
		if err := huh.NewText().
			Title("プロンプトを編集").
			Lines(20).
			Value(&text).
			Run(); err != nil {
			return err
		}
		session.EditPrompt(text)
	}
	fmt.Println(promptStyle.Render(session.Snapshot().Prompt))
	return nil
}

// retryable reports whether a failed step should send the user back to the form.
func retryable(ctx context.Context, err error) bool {
	return ctx.Err() == nil && !errors.Is(err, errSpinner)
}

func runWithSpinner(title string, fn func() error) error {
	var err error
	if spinErr := spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run(); spinErr != nil {
		return fmt.Errorf("%w: %v", errSpinner, spinErr)
	}
	if err != nil {
		if !errors.Is(err, studio.ErrStale) {
			fmt.Println(errorStyle.Render("✗ " + err.Error()))
		}
		return err
	}
	fmt.Println(successStyle.Render("✓ " + title))
	return nil
}
