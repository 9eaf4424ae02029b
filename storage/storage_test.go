package storage

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestDataURIHost(t *testing.T) {
	host := DataURIHost{}

	got, err := host.Host(context.Background(), pngHeader, "")
	if err != nil {
		t.Fatalf("Host() error = %v", err)
	}
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)
	if got != want {
		t.Errorf("Host() = %q, want %q", got, want)
	}

	if _, err := host.Host(context.Background(), []byte("plain text"), ""); err == nil {
		t.Error("Host(text) error = nil, want unsupported content type")
	}
	if _, err := host.Host(context.Background(), nil, "image/png"); err == nil {
		t.Error("Host(nil) error = nil, want empty data error")
	}
	if err := host.Remove(context.Background(), got); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
}

func TestMinIOObjectNameFromURL(t *testing.T) {
	s := &MinIOStore{bucket: "chars", publicURL: "https://cdn.example.com"}

	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "bareObject", raw: "characters/2025-01-01/a.jpg", want: "characters/2025-01-01/a.jpg", wantOK: true},
		{name: "bucketPrefixed", raw: "/chars/characters/a.jpg", want: "characters/a.jpg", wantOK: true},
		{name: "publicURL", raw: "https://cdn.example.com/chars/characters/a.jpg?X-Amz-Signature=abc", want: "characters/a.jpg", wantOK: true},
		{name: "foreignHost", raw: "https://other.example.com/chars/a.jpg"},
		{name: "empty", raw: "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.objectNameFromURL(tt.raw)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("objectNameFromURL(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestGCSObjectName(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "signed", raw: "https://storage.googleapis.com/chars/characters/a.jpg?X-Goog-Signature=1", want: "characters/a.jpg", wantOK: true},
		{name: "otherBucket", raw: "https://storage.googleapis.com/other/a.jpg"},
		{name: "otherHost", raw: "https://example.com/chars/a.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := gcsObjectName(tt.raw, "chars")
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("gcsObjectName(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	key := objectKey("image/jpeg")
	if !strings.HasPrefix(key, "characters/") || !strings.HasSuffix(key, ".jpg") {
		t.Errorf("objectKey() = %q", key)
	}
	if objectKey("image/jpeg") == key {
		t.Error("objectKey() should be unique per call")
	}
}
