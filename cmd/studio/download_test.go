package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/KingHippopotamus/pmax-helper/logger"
	"github.com/KingHippopotamus/pmax-helper/studio"
)

func TestDownloadURL(t *testing.T) {
	log = logger.Nop()

	tests := []struct {
		name     string
		status   int
		body     string
		existing string
		wantErr  error
		want     string
	}{
		{name: "replacesExisting", status: http.StatusOK, body: "new-mp4", existing: "previous good video", want: "new-mp4"},
		{name: "freshFile", status: http.StatusOK, body: "new-mp4", want: "new-mp4"},
		{name: "failureKeepsExisting", status: http.StatusInternalServerError, body: `{"error":"boom"}`, existing: "previous good video", wantErr: studio.ErrDownload, want: "previous good video"},
		{name: "failureLeavesNoFile", status: http.StatusInternalServerError, body: `{"error":"boom"}`, wantErr: studio.ErrDownload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			client := studio.NewClient(studio.Config{BaseURL: srv.URL}, nil)

			dir := t.TempDir()
			path := filepath.Join(dir, "character_video.mp4")
			if tt.existing != "" {
				if err := os.WriteFile(path, []byte(tt.existing), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			err := downloadURL(context.Background(), client, "https://cdn.example/v.mp4", path)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("downloadURL() error = %v, want %v", err, tt.wantErr)
			}

			data, readErr := os.ReadFile(path)
			switch {
			case tt.want == "" && !errors.Is(readErr, os.ErrNotExist):
				t.Errorf("file exists after failed download: %q", data)
			case tt.want != "" && string(data) != tt.want:
				t.Errorf("file = %q, want %q", data, tt.want)
			}

			entries, _ := os.ReadDir(dir)
			wantEntries := 0
			if tt.want != "" {
				wantEntries = 1
			}
			if len(entries) != wantEntries {
				t.Errorf("dir has %d entries, want %d (temp file left behind?)", len(entries), wantEntries)
			}
		})
	}
}
