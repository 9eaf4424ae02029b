package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KingHippopotamus/pmax-helper/config"
	"github.com/KingHippopotamus/pmax-helper/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrDisabled      = errors.New("video: FAL_KEY not configured")
	ErrContentPolicy = errors.New("video: content policy violation")
)

// ContentPolicyError carries the provider's explanation for a rejected input.
type ContentPolicyError struct {
	Message string
}

func (e *ContentPolicyError) Error() string {
	if e.Message == "" {
		return ErrContentPolicy.Error()
	}
	return e.Message
}

func (e *ContentPolicyError) Is(target error) bool {
	return target == ErrContentPolicy
}

// ImageToVideoRequest is the argument set of the image-to-video model.
type ImageToVideoRequest struct {
	ImageURL    string `json:"image_url"`
	Prompt      string `json:"prompt"`
	Duration    int    `json:"duration"`
	Resolution  string `json:"resolution"`
	AspectRatio string `json:"aspect_ratio"`
}

type VideoResult struct {
	VideoURL  string
	RequestID string
}

// Provider renders a video from a hosted image and a prompt.
type Provider interface {
	Generate(ctx context.Context, req ImageToVideoRequest) (*VideoResult, error)
}

// FalClient drives the fal.ai queue API: submit, poll status, fetch result.
type FalClient struct {
	httpClient   *http.Client
	baseURL      string
	model        string
	key          string
	pollInterval time.Duration
	limiter      *rate.Limiter
	log          *zap.SugaredLogger
}

type queueSubmitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type queueStatusResponse struct {
	Status string `json:"status"`
}

type falResult struct {
	Video struct {
		URL string `json:"url"`
	} `json:"video"`
}

func NewFalClient(cfg config.FalConfig, log *zap.SugaredLogger) *FalClient {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://queue.fal.run"
	}
	return &FalClient{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        strings.Trim(cfg.Model, "/"),
		key:          cfg.Key,
		pollInterval: poll,
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		log:          logger.OrNop(log),
	}
}

func (c *FalClient) Enabled() bool {
	return c != nil && c.key != ""
}

// Generate submits req and blocks until the queue reports completion or ctx ends.
func (c *FalClient) Generate(ctx context.Context, req ImageToVideoRequest) (*VideoResult, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("video: wait for submission slot: %w", err)
	}

	submitted, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	c.log.Infow("fal request queued", "request_id", submitted.RequestID, "model", c.model)

	if err := c.waitCompleted(ctx, submitted); err != nil {
		return nil, err
	}

	var result falResult
	if err := c.getJSON(ctx, c.responseURL(submitted), &result); err != nil {
		return nil, err
	}
	if result.Video.URL == "" {
		return nil, fmt.Errorf("video: video url not found in response for request %s", submitted.RequestID)
	}

	return &VideoResult{VideoURL: result.Video.URL, RequestID: submitted.RequestID}, nil
}

func (c *FalClient) submit(ctx context.Context, req ImageToVideoRequest) (*queueSubmitResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("video: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.model, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("video: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out queueSubmitResponse
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	if out.RequestID == "" {
		return nil, errors.New("video: queue response missing request_id")
	}
	return &out, nil
}

func (c *FalClient) waitCompleted(ctx context.Context, submitted *queueSubmitResponse) error {
	statusURL := submitted.StatusURL
	if statusURL == "" {
		statusURL = fmt.Sprintf("%s/%s/requests/%s/status", c.baseURL, c.appID(), submitted.RequestID)
	}

	for {
		var status queueStatusResponse
		if err := c.getJSON(ctx, statusURL, &status); err != nil {
			return err
		}
		switch strings.ToUpper(status.Status) {
		case "COMPLETED":
			return nil
		case "IN_QUEUE", "IN_PROGRESS":
		default:
			return fmt.Errorf("video: unexpected queue status %q", status.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *FalClient) responseURL(submitted *queueSubmitResponse) string {
	if submitted.ResponseURL != "" {
		return submitted.ResponseURL
	}
	return fmt.Sprintf("%s/%s/requests/%s", c.baseURL, c.appID(), submitted.RequestID)
}

// appID drops the endpoint path: fal-ai/sora-2/image-to-video -> fal-ai/sora-2.
func (c *FalClient) appID() string {
	parts := strings.Split(c.model, "/")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, "/")
}

func (c *FalClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("video: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *FalClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Key "+c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("video: fal request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("video: read fal response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseFalError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("video: decode fal response: %w", err)
	}
	return nil
}

type falErrorDetail struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

// parseFalError understands both {"detail": "text"} and {"detail": [{"type", "msg"}]}.
func parseFalError(status int, body []byte) error {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	_ = json.Unmarshal(body, &envelope)

	var details []falErrorDetail
	var text string
	if len(envelope.Detail) > 0 {
		if err := json.Unmarshal(envelope.Detail, &details); err != nil {
			_ = json.Unmarshal(envelope.Detail, &text)
		}
	}

	for _, d := range details {
		if d.Type == "content_policy_violation" {
			return &ContentPolicyError{Message: d.Msg}
		}
	}
	if strings.Contains(string(body), "content_policy_violation") {
		return &ContentPolicyError{Message: text}
	}

	msg := text
	if msg == "" && len(details) > 0 {
		msg = details[0].Msg
	}
	if msg == "" {
		msg = truncateRunes(strings.TrimSpace(string(body)), 300)
	}
	return fmt.Errorf("video: fal returned status %d: %s", status, msg)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
