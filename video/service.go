package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KingHippopotamus/pmax-helper/config"
	"github.com/KingHippopotamus/pmax-helper/history"
	"github.com/KingHippopotamus/pmax-helper/imaging"
	"github.com/KingHippopotamus/pmax-helper/logger"
	"github.com/KingHippopotamus/pmax-helper/prompt"
	"github.com/KingHippopotamus/pmax-helper/scraper"
	"github.com/KingHippopotamus/pmax-helper/storage"
	"go.uber.org/zap"
)

const (
	// DefaultPrompt is used when neither a prompt nor product info is supplied.
	DefaultPrompt = "Make this character dance with lively and fun movements. Add energetic body language and natural motion."

	DownloadFilename = "character_video.mp4"

	maxSourceImageBytes = 20 << 20
)

var (
	ErrMissingInput     = errors.New("page_url or character_image_url is required")
	ErrNoCharacterImage = errors.New("キャラクター画像が見つかりませんでした")
)

// ContentPolicySuggestions are shown to the user when the provider rejects the image.
var ContentPolicySuggestions = []string{
	"画像の背景をシンプルにする",
	"明るい照明の画像を使用する",
	"キャラクターの全身が写っている画像を避ける",
	"ロゴやイラストなど、人物以外の画像を試す",
}

// GenerateRequest is the body of /api/generate-videos.
type GenerateRequest struct {
	PageURL           string              `json:"page_url"`
	Prompt            string              `json:"prompt,omitempty"`
	ProductInfo       *prompt.ProductInfo `json:"product_info,omitempty"`
	CharacterImageURL string              `json:"character_image_url,omitempty"`
	Square            bool                `json:"square,omitempty"`
}

// GenerationResult carries either a video URL or an error, never both.
type GenerationResult struct {
	VideoURL     string   `json:"video_url,omitempty"`
	Status       string   `json:"status,omitempty"`
	Error        string   `json:"error,omitempty"`
	ErrorType    string   `json:"error_type,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
	GenerationID string   `json:"generation_id,omitempty"`
}

// Service turns a landing page or character image into a marketing video.
type Service struct {
	provider       Provider
	scraper        *scraper.Scraper
	host           storage.ImageHost
	history        *history.Store
	imageClient    *http.Client
	downloadClient *http.Client
	duration       int
	log            *zap.SugaredLogger
}

func NewService(provider Provider, s *scraper.Scraper, host storage.ImageHost, store *history.Store, cfg *config.Config, log *zap.SugaredLogger) *Service {
	downloadTimeout := cfg.Server.DownloadTimeout
	if downloadTimeout <= 0 {
		downloadTimeout = 60 * time.Second
	}
	duration := cfg.Fal.Duration
	if duration <= 0 {
		duration = 12
	}
	if host == nil {
		host = storage.DataURIHost{}
	}
	return &Service{
		provider:       provider,
		scraper:        s,
		host:           host,
		history:        store,
		imageClient:    &http.Client{Timeout: 10 * time.Second},
		downloadClient: &http.Client{Timeout: downloadTimeout},
		duration:       duration,
		log:            logger.OrNop(log),
	}
}

// ResolvePrompt applies the precedence explicit prompt > product info > default prompt.
// An edited prompt is sent verbatim and is never replaced by a resynthesis.
func ResolvePrompt(req GenerateRequest) string {
	if strings.TrimSpace(req.Prompt) != "" {
		return req.Prompt
	}
	if req.ProductInfo != nil {
		return prompt.SynthesizeWithOptions(*req.ProductInfo, prompt.Options{Square: req.Square})
	}
	return DefaultPrompt
}

// Generate runs the whole pipeline and records the outcome in history.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error) {
	req.PageURL = strings.TrimSpace(req.PageURL)
	req.CharacterImageURL = strings.TrimSpace(req.CharacterImageURL)
	if req.PageURL == "" && req.CharacterImageURL == "" {
		return nil, ErrMissingInput
	}

	characterURL, err := s.resolveCharacter(ctx, req)
	if err != nil {
		return nil, err
	}

	finalPrompt := ResolvePrompt(req)
	record := &history.Generation{
		PageURL:           req.PageURL,
		CharacterImageURL: characterURL,
		Prompt:            finalPrompt,
	}
	if req.ProductInfo != nil {
		record.ProductInfo = history.EncodeProductInfo(req.ProductInfo)
	}

	result, err := s.render(ctx, characterURL, finalPrompt, record)
	if err != nil {
		record.Status = history.StatusFailed
		record.Error = err.Error()
		if errors.Is(err, ErrContentPolicy) {
			record.ErrorType = "content_policy_violation"
		}
	} else {
		record.Status = history.StatusSuccess
		record.VideoURL = result.VideoURL
		record.RequestID = result.RequestID
	}

	if recErr := s.history.Record(context.WithoutCancel(ctx), record); recErr != nil {
		s.log.Warnw("record generation failed", "error", recErr)
	}
	if err != nil {
		return nil, err
	}

	s.log.Infow("video generation complete", "generation_id", record.ID, "video_url", result.VideoURL)
	return &GenerationResult{
		VideoURL:     result.VideoURL,
		Status:       "success",
		GenerationID: record.ID,
	}, nil
}

func (s *Service) resolveCharacter(ctx context.Context, req GenerateRequest) (string, error) {
	if req.CharacterImageURL != "" {
		return req.CharacterImageURL, nil
	}
	if s.scraper == nil {
		return "", ErrNoCharacterImage
	}
	images, err := s.scraper.Extract(ctx, req.PageURL)
	if err != nil {
		return "", fmt.Errorf("video: extract character image: %w", err)
	}
	if images.CharacterURL == "" {
		return "", ErrNoCharacterImage
	}
	return images.CharacterURL, nil
}

func (s *Service) render(ctx context.Context, characterURL, finalPrompt string, record *history.Generation) (*VideoResult, error) {
	if s.provider == nil {
		return nil, ErrDisabled
	}

	original, err := s.fetchImage(ctx, characterURL)
	if err != nil {
		return nil, err
	}
	processed, err := imaging.Pad(original, imaging.Options{})
	if err != nil {
		return nil, fmt.Errorf("video: preprocess character image: %w", err)
	}
	s.log.Debugw("character image preprocessed", "original_bytes", len(original), "processed_bytes", len(processed))

	hosted, err := s.host.Host(ctx, processed, "image/jpeg")
	if err != nil {
		return nil, fmt.Errorf("video: host character image: %w", err)
	}
	record.HostedImageURL = hosted

	return s.provider.Generate(ctx, ImageToVideoRequest{
		ImageURL:    hosted,
		Prompt:      finalPrompt,
		Duration:    s.duration,
		Resolution:  "auto",
		AspectRatio: "auto",
	})
}

func (s *Service) fetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	if err := checkRemoteURL(rawURL); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("video: build image request: %w", err)
	}
	req.Header.Set("User-Agent", config.DefaultUserAgent)

	resp, err := s.imageClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video: download character image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("video: download character image: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("video: read character image: %w", err)
	}
	if len(data) > maxSourceImageBytes {
		return nil, fmt.Errorf("video: character image exceeds %d bytes", maxSourceImageBytes)
	}
	return data, nil
}

// OpenVideo starts downloading videoURL. The caller must close the returned body.
func (s *Service) OpenVideo(ctx context.Context, videoURL string) (io.ReadCloser, int64, error) {
	if err := checkRemoteURL(videoURL); err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("video: build download request: %w", err)
	}

	resp, err := s.downloadClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("video: download video: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("video: download video: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

func checkRemoteURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("video: invalid url %q", raw)
	}
	return nil
}
