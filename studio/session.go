package studio

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/KingHippopotamus/pmax-helper/logger"
	"github.com/KingHippopotamus/pmax-helper/prompt"
	"github.com/KingHippopotamus/pmax-helper/video"
	"go.uber.org/zap"
)

// ErrStale means a newer request of the same flow was issued while this one ran.
// Its response was dropped and the session state was left alone.
var ErrStale = errors.New("studio: superseded by a newer request")

// SynthesisState tracks whether the current analysis cycle has produced its first prompt.
type SynthesisState int

const (
	AwaitingFirstSynthesis SynthesisState = iota
	Synthesized
)

func (s SynthesisState) String() string {
	switch s {
	case AwaitingFirstSynthesis:
		return "awaiting_first_synthesis"
	case Synthesized:
		return "synthesized"
	default:
		return "unknown"
	}
}

func (s SynthesisState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a copy of the session at one point in time.
type State struct {
	PageURL           string                  `json:"page_url" yaml:"page_url"`
	ProductInfo       *prompt.ProductInfo     `json:"product_info,omitempty" yaml:"product_info,omitempty"`
	CharacterImageURL string                  `json:"character_image_url,omitempty" yaml:"character_image_url,omitempty"`
	Prompt            string                  `json:"prompt" yaml:"prompt"`
	Synthesis         SynthesisState          `json:"synthesis" yaml:"synthesis"`
	Analyzing         bool                    `json:"analyzing" yaml:"-"`
	AnalysisError     string                  `json:"analysis_error,omitempty" yaml:"analysis_error,omitempty"`
	Generating        bool                    `json:"generating" yaml:"-"`
	Result            *video.GenerationResult `json:"result,omitempty" yaml:"result,omitempty"`
}

// Session owns the analyze, edit, generate and download workflow for one user.
// Analysis and generation run independently; within each flow the last issued request wins.
type Session struct {
	client *Client
	log    *zap.SugaredLogger

	mu          sync.Mutex
	state       State
	analyzeSeq  uint64
	generateSeq uint64
}

// NewSession starts an empty session that talks to the backend through client.
func NewSession(client *Client, log *zap.SugaredLogger) *Session {
	return &Session{client: client, log: logger.OrNop(log)}
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (st State) clone() State {
	out := st
	if st.ProductInfo != nil {
		info := *st.ProductInfo
		out.ProductInfo = &info
	}
	if st.Result != nil {
		result := *st.Result
		result.Suggestions = append([]string(nil), st.Result.Suggestions...)
		out.Result = &result
	}
	return out
}

// Analyze resets the cycle, calls the backend and synthesizes the first prompt on success.
func (s *Session) Analyze(ctx context.Context, pageURL string) error {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return ErrEmptyURL
	}

	s.mu.Lock()
	s.analyzeSeq++
	seq := s.analyzeSeq
	s.state.PageURL = pageURL
	s.state.ProductInfo = nil
	s.state.CharacterImageURL = ""
	s.state.Prompt = ""
	s.state.Synthesis = AwaitingFirstSynthesis
	s.state.Analyzing = true
	s.state.AnalysisError = ""
	s.mu.Unlock()

	resp, err := s.client.AnalyzePage(ctx, pageURL)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.analyzeSeq {
		s.log.Debugw("dropping stale analysis", "page_url", pageURL, "seq", seq)
		return ErrStale
	}
	s.state.Analyzing = false

	if err != nil {
		s.log.Warnw("page analysis failed", "page_url", pageURL, "error", err)
		s.state.AnalysisError = err.Error()
		return err
	}

	info := resp.ProductInfo
	s.state.ProductInfo = &info
	if strings.TrimSpace(resp.CharacterImageURL) != "" {
		s.state.CharacterImageURL = resp.CharacterImageURL
	}
	if s.state.Synthesis == AwaitingFirstSynthesis {
		s.state.Prompt = prompt.Synthesize(info)
		s.state.Synthesis = Synthesized
	}
	return nil
}

// EditPrompt replaces the prompt verbatim. Later field edits never touch it.
func (s *Session) EditPrompt(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Prompt = text
}

// Regenerate overwrites the prompt with a fresh synthesis of the current product info.
func (s *Session) Regenerate() string {
	return s.RegenerateWithOptions(prompt.Options{})
}

// RegenerateWithOptions is Regenerate with synthesis options such as a square frame.
func (s *Session) RegenerateWithOptions(opts prompt.Options) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var info prompt.ProductInfo
	if s.state.ProductInfo != nil {
		info = *s.state.ProductInfo
	}
	s.state.Prompt = prompt.SynthesizeWithOptions(info, opts)
	return s.state.Prompt
}

// EditField sets one product field without resynthesizing.
func (s *Session) EditField(field prompt.Field, value string) error {
	if _, err := prompt.ParseField(string(field)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var info prompt.ProductInfo
	if s.state.ProductInfo != nil {
		info = *s.state.ProductInfo
	}
	info = info.With(field, value)
	s.state.ProductInfo = &info
	return nil
}

// SetCharacterImage overrides the character image URL sent with the next generation.
func (s *Session) SetCharacterImage(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CharacterImageURL = strings.TrimSpace(url)
}

// Generate sends the current prompt, product info and character image for pageURL.
func (s *Session) Generate(ctx context.Context, pageURL string) error {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return ErrEmptyURL
	}

	s.mu.Lock()
	s.generateSeq++
	seq := s.generateSeq
	req := video.GenerateRequest{
		PageURL:           pageURL,
		Prompt:            s.state.Prompt,
		CharacterImageURL: s.state.CharacterImageURL,
	}
	if s.state.ProductInfo != nil {
		info := *s.state.ProductInfo
		req.ProductInfo = &info
	}
	s.state.Generating = true
	s.state.Result = nil
	s.mu.Unlock()

	res, err := s.client.GenerateVideo(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.generateSeq {
		s.log.Debugw("dropping stale generation", "page_url", pageURL, "seq", seq)
		return ErrStale
	}
	s.state.Generating = false

	if err != nil {
		s.log.Warnw("video generation failed", "page_url", pageURL, "error", err)
		failed := &video.GenerationResult{Error: err.Error()}
		if res != nil {
			failed.ErrorType = res.ErrorType
			failed.Suggestions = res.Suggestions
		}
		s.state.Result = failed
		return err
	}

	s.state.Result = &video.GenerationResult{
		VideoURL:     res.VideoURL,
		Status:       res.Status,
		GenerationID: res.GenerationID,
	}
	return nil
}

// Download streams the generated video into w. Without a video URL it does nothing.
func (s *Session) Download(ctx context.Context, w io.Writer) error {
	s.mu.Lock()
	var videoURL string
	if s.state.Result != nil {
		videoURL = s.state.Result.VideoURL
	}
	s.mu.Unlock()

	if videoURL == "" {
		return nil
	}
	if _, err := s.client.DownloadVideo(ctx, videoURL, w); err != nil {
		s.log.Warnw("video download failed", "video_url", videoURL, "error", err)
		return ErrDownload
	}
	return nil
}

// HasVideo reports whether the last generation produced a downloadable video.
func (s *Session) HasVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Result != nil && s.state.Result.VideoURL != ""
}
