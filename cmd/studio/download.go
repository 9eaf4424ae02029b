package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/KingHippopotamus/pmax-helper/studio"
	"github.com/KingHippopotamus/pmax-helper/video"
	"github.com/spf13/cobra"
)

var downloadOutput string

var downloadCmd = &cobra.Command{
	Use:   "download <video-url>",
	Short: "Download a generated video through the backend proxy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := downloadOutput
		if path == "" {
			path = video.DownloadFilename
		}
		return runWithSpinner("Downloading video", func() error {
			return downloadURL(cmd.Context(), apiClient, args[0], path)
		})
	},
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "Destination file (default "+video.DownloadFilename+")")
	rootCmd.AddCommand(downloadCmd)
}

// downloadURL proxies videoURL through the backend into path.
func downloadURL(ctx context.Context, client *studio.Client, videoURL, path string) error {
	return saveFile(path, func(w io.Writer) error {
		if _, err := client.DownloadVideo(ctx, videoURL, w); err != nil {
			log.Debugw("download failed", "error", err)
			return studio.ErrDownload
		}
		return nil
	})
}

// downloadTo saves the session's video to path.
func downloadTo(cmd *cobra.Command, path string) error {
	if !session.HasVideo() {
		return nil
	}
	return runWithSpinner("Downloading video to "+path, func() error {
		return saveFile(path, func(w io.Writer) error {
			return session.Download(cmd.Context(), w)
		})
	})
}

// saveFile writes into a temp file beside path and renames it over path only when write succeeds.
// On failure path is left untouched.
func saveFile(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
