package analyzer

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
	"go.uber.org/zap"
)

// Provider turns an analysis prompt into the model's text answer.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// LambdaProvider calls Gemini through the AWS Lambda proxy.
type LambdaProvider struct {
	httpClient *http.Client
	endpoint   string
	secret     string
	model      string
	retries    int
	backoff    time.Duration
	log        *zap.SugaredLogger
}

type lambdaRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// NewLambdaProvider builds the proxy client. Attempts back off 1s, 2s, 4s and so on.
func NewLambdaProvider(cfg config.GeminiConfig, log *zap.SugaredLogger) (*LambdaProvider, error) {
	endpoint := strings.TrimSpace(cfg.LambdaURL)
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("analyzer: invalid lambda url %q", endpoint)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retries := cfg.Retries
	if retries < 1 {
		retries = 1
	}
	return &LambdaProvider{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		secret:     cfg.LambdaSecret,
		model:      cfg.Model,
		retries:    retries,
		backoff:    time.Second,
		log:        log,
	}, nil
}

func (p *LambdaProvider) Name() string { return "gemini-lambda" }

func (p *LambdaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < p.retries; attempt++ {
		if attempt > 0 {
			wait := p.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		text, err := p.invoke(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		p.log.Warnw("gemini lambda attempt failed", "attempt", attempt+1, "max", p.retries, "error", err)
	}
	return "", fmt.Errorf("analyzer: all %d attempts failed: %w", p.retries, lastErr)
}

func (p *LambdaProvider) invoke(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(lambdaRequest{Prompt: prompt, Model: p.model})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.secret != "" {
		req.Header.Set("x-api-key", p.secret)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gemini request failed: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return extractLambdaText(body)
}

// extractLambdaText accepts {"body": "<json>"}, {"body": {"response": ...}} and {"response": ...}.
func extractLambdaText(raw []byte) (string, error) {
	var envelope struct {
		Body     json.RawMessage `json:"body"`
		Response *string         `json:"response"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("parse lambda response: %w", err)
	}

	if len(envelope.Body) > 0 && string(envelope.Body) != "null" {
		inner := []byte(envelope.Body)
		var encoded string
		if err := json.Unmarshal(inner, &encoded); err == nil {
			inner = []byte(encoded)
		}
		var body struct {
			Response string `json:"response"`
		}
		if err := json.Unmarshal(inner, &body); err != nil {
			return "", fmt.Errorf("parse lambda body: %w", err)
		}
		if strings.TrimSpace(body.Response) == "" {
			return "", errors.New("no 'response' field found in lambda response body")
		}
		return body.Response, nil
	}

	if envelope.Response != nil {
		return *envelope.Response, nil
	}
	return "", errors.New("unexpected lambda response format")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
