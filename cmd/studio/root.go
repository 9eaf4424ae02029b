package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/KingHippopotamus/pmax-helper/config"
	"github.com/KingHippopotamus/pmax-helper/logger"
	"github.com/KingHippopotamus/pmax-helper/studio"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	baseURL    string
	verbose    bool
	exportPath string

	log       *zap.SugaredLogger
	apiClient *studio.Client
	session   *studio.Session
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	promptStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "Turn a landing page into a marketing video",
	Long: `studio analyzes a landing page, builds a Japanese video prompt from the
extracted product info, requests an image-to-video render and downloads the result.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if exportPath == "" || session == nil {
			return nil
		}
		return exportSession(exportPath, session.Snapshot())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Backend origin (defaults to PMAX_API_BASE_URL or the local server)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&exportPath, "export", "", "Write the final session state to this YAML file")
}

func Execute() error {
	return rootCmd.Execute()
}

func setup() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log = logger.NewLogger(verbose)

	origin := strings.TrimSpace(baseURL)
	if origin == "" {
		origin = cfg.Studio.BaseURL
	}
	if origin == "" {
		origin = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	log.Debugw("using backend", "base_url", origin)

	apiClient = studio.NewClient(studio.Config{BaseURL: origin}, nil)
	session = studio.NewSession(apiClient, log)
	return nil
}

func exportSession(path string, state studio.State) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Println(successStyle.Render("✓ Session exported to " + path))
	return nil
}
