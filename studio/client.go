package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/KingHippopotamus/pmax-helper/prompt"
	"github.com/KingHippopotamus/pmax-helper/video"
)

const (
	analyzePath  = "/api/analyze-page"
	generatePath = "/api/generate-videos"
	downloadPath = "/api/download-video"

	analysisFallback   = "ページの分析に失敗しました"
	generationFallback = "動画の生成に失敗しました"
	downloadFallback   = "動画のダウンロードに失敗しました"
)

var (
	// ErrEmptyURL is returned before any request when the page URL is blank.
	ErrEmptyURL = errors.New("URLを入力してください")
	// ErrDownload is the only error Download reports; the cause is logged.
	ErrDownload = errors.New(downloadFallback)
)

// Config selects the backend origin. An empty BaseURL keeps request paths relative,
// which suits an http.Client whose transport already targets the serving origin.
type Config struct {
	BaseURL string
}

// APIError is a failed backend call. Message is the server's error text or a fixed fallback.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Err }

// AnalysisResponse mirrors the body of /api/analyze-page.
type AnalysisResponse struct {
	prompt.ProductInfo
	CharacterImageURL string `json:"character_image_url"`
	GeneratedPrompt   string `json:"generated_prompt"`
	RawAnalysis       string `json:"raw_analysis"`
	PageURL           string `json:"page_url"`
	Error             string `json:"error"`
}

// Client calls the backend endpoints. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client. A nil httpClient uses a client with no timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: httpClient,
	}
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

// AnalyzePage asks the backend to extract product info from pageURL.
func (c *Client) AnalyzePage(ctx context.Context, pageURL string) (*AnalysisResponse, error) {
	var out AnalysisResponse
	status, err := c.postJSON(ctx, analyzePath, map[string]string{"page_url": pageURL}, &out)
	if err != nil {
		return nil, &APIError{StatusCode: status, Message: analysisFallback, Err: err}
	}
	if status < 200 || status >= 300 || out.Error != "" {
		return nil, &APIError{StatusCode: status, Message: messageOr(out.Error, analysisFallback)}
	}
	return &out, nil
}

// GenerateVideo submits one generation request. An empty prompt is left out of the body.
func (c *Client) GenerateVideo(ctx context.Context, req video.GenerateRequest) (*video.GenerationResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		req.Prompt = ""
	}
	var out video.GenerationResult
	status, err := c.postJSON(ctx, generatePath, req, &out)
	if err != nil {
		return nil, &APIError{StatusCode: status, Message: generationFallback, Err: err}
	}
	if status < 200 || status >= 300 || out.Error != "" || out.VideoURL == "" {
		return &out, &APIError{StatusCode: status, Message: messageOr(out.Error, generationFallback)}
	}
	return &out, nil
}

// DownloadVideo streams the proxied video into w and returns the bytes written.
func (c *Client) DownloadVideo(ctx context.Context, videoURL string, w io.Writer) (int64, error) {
	resp, err := c.post(ctx, downloadPath, map[string]string{"video_url": videoURL})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("studio: download video: unexpected status %d", resp.StatusCode)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("studio: download video: %w", err)
	}
	return n, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("studio: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("studio: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("studio: %s: %w", path, err)
	}
	return resp, nil
}

// postJSON decodes any JSON body, including error bodies, into out.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) (int, error) {
	resp, err := c.post(ctx, path, body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("studio: read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, fmt.Errorf("studio: decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func messageOr(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}
