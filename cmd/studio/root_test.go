package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KingHippopotamus/pmax-helper/prompt"
	"github.com/KingHippopotamus/pmax-helper/studio"
	"github.com/KingHippopotamus/pmax-helper/video"
	"gopkg.in/yaml.v3"
)

func TestExportSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	state := studio.State{
		PageURL:           "https://example.com",
		ProductInfo:       &prompt.ProductInfo{ProductName: "Acme", CTAText: "Buy Now"},
		CharacterImageURL: "https://img/x.png",
		Prompt:            "prompt text",
		Synthesis:         studio.Synthesized,
		Analyzing:         true,
		Result:            &video.GenerationResult{VideoURL: "https://cdn.example/v.mp4"},
	}

	if err := exportSession(path, state); err != nil {
		t.Fatalf("exportSession() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}

	var got map[string]any
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if got["page_url"] != "https://example.com" || got["synthesis"] != "synthesized" {
		t.Errorf("export = %v", got)
	}
	info, _ := got["product_info"].(map[string]any)
	if info["product_name"] != "Acme" || info["cta_text"] != "Buy Now" {
		t.Errorf("product_info = %v", info)
	}
	if _, ok := got["analyzing"]; ok {
		t.Error("transient analyzing flag should not be exported")
	}
}

func TestExportSessionBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "session.yaml")
	if err := exportSession(path, studio.State{}); err == nil {
		t.Error("exportSession() error = nil, want write error")
	}
}
