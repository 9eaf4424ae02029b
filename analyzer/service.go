package analyzer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KingHippopotamus/pmax-helper/cache"
	"github.com/KingHippopotamus/pmax-helper/config"
	"github.com/KingHippopotamus/pmax-helper/logger"
	"github.com/KingHippopotamus/pmax-helper/prompt"
	"github.com/KingHippopotamus/pmax-helper/scraper"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrDisabled = errors.New("analyzer: no analysis provider configured")

// sharedAnalysisTimeout bounds one upstream analysis independently of the callers waiting on it.
const sharedAnalysisTimeout = 3 * time.Minute

// Result is the body of a successful /api/analyze-page response.
type Result struct {
	prompt.ProductInfo
	GeneratedPrompt   string `json:"generated_prompt"`
	RawAnalysis       string `json:"raw_analysis"`
	PageURL           string `json:"page_url"`
	CharacterImageURL string `json:"character_image_url"`
}

// Service fetches a landing page, asks the model for product copy and locates the character image.
type Service struct {
	scraper  *scraper.Scraper
	provider Provider
	store    cache.Store
	ttl      time.Duration
	maxText  int
	group    singleflight.Group
	log      *zap.SugaredLogger
}

// NewProvider prefers the direct Gemini API when an API key is present.
func NewProvider(ctx context.Context, cfg config.GeminiConfig, log *zap.SugaredLogger) (Provider, error) {
	if cfg.APIKey != "" {
		return NewGenAIProvider(ctx, cfg)
	}
	return NewLambdaProvider(cfg, logger.OrNop(log))
}

// NewService wires a Service. store may be nil to disable caching.
func NewService(s *scraper.Scraper, provider Provider, store cache.Store, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{
		scraper:  s,
		provider: provider,
		store:    store,
		ttl:      cfg.Server.AnalysisCacheTTL,
		maxText:  cfg.Scraper.MaxPageText,
		log:      logger.OrNop(log),
	}
}

func cacheKey(pageURL string) string {
	sum := sha1.Sum([]byte(pageURL))
	return "analysis:page:" + hex.EncodeToString(sum[:])
}

// Analyze returns the product fields and first prompt for pageURL.
// Concurrent calls for the same URL share one upstream request.
func (s *Service) Analyze(ctx context.Context, pageURL string) (*Result, error) {
	if s == nil || s.provider == nil {
		return nil, ErrDisabled
	}
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return nil, errors.New("analyzer: page url is required")
	}

	key := cacheKey(pageURL)
	if s.store != nil {
		var cached Result
		if found, err := s.store.Get(ctx, key, &cached); err != nil {
			s.log.Warnw("analysis cache read failed", "error", err)
		} else if found {
			s.log.Debugw("analysis cache hit", "page_url", pageURL)
			return &cached, nil
		}
	}

	// The shared work outlives any single caller so one disconnect does not fail the others.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedAnalysisTimeout)
		defer cancel()

		result, err := s.analyze(flightCtx, pageURL)
		if err != nil {
			return nil, err
		}
		if s.store != nil && s.ttl > 0 {
			if err := s.store.Set(flightCtx, key, *result, s.ttl); err != nil {
				s.log.Warnw("analysis cache write failed", "error", err)
			}
		}
		return result, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.log.Debugw("analysis shared with concurrent request", "page_url", pageURL)
		}
		result := *res.Val.(*Result)
		return &result, nil
	}
}

func (s *Service) analyze(ctx context.Context, pageURL string) (*Result, error) {
	page, err := s.scraper.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	text := page.Text(s.maxText)
	s.log.Infow("analyzing page", "page_url", pageURL, "text_length", len([]rune(text)), "provider", s.provider.Name())

	raw, err := s.provider.Generate(ctx, prompt.AnalysisPrompt(text))
	if err != nil {
		return nil, err
	}

	info := prompt.ParseAnalysis(raw)
	characterURL := page.Images().CharacterURL
	if characterURL == "" {
		s.log.Warnw("character image not found", "page_url", pageURL)
	}

	return &Result{
		ProductInfo:       info,
		GeneratedPrompt:   prompt.Synthesize(info),
		RawAnalysis:       raw,
		PageURL:           pageURL,
		CharacterImageURL: characterURL,
	}, nil
}

// ExtractImages returns the logo and character image URLs of pageURL.
func (s *Service) ExtractImages(ctx context.Context, pageURL string) (scraper.Images, error) {
	if s == nil || s.scraper == nil {
		return scraper.Images{}, fmt.Errorf("analyzer: scraper not configured")
	}
	return s.scraper.Extract(ctx, pageURL)
}
