package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KingHippopotamus/pmax-helper/logger"
	"github.com/KingHippopotamus/pmax-helper/prompt"
)

// fakeBackend answers the three studio endpoints with canned bodies.
type fakeBackend struct {
	calls int32

	mu            sync.Mutex
	analyzeStatus int
	analyzeBody   string
	analyzeDelay  map[string]time.Duration
	generateBody  string
	generateCode  int
	generateReqs  []map[string]any
	downloadBody  string
	downloadCode  int
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.calls, 1)
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.URL.Path {
	case analyzePath:
		if d, ok := f.analyzeDelay[body["page_url"].(string)]; ok {
			f.mu.Unlock()
			time.Sleep(d)
			f.mu.Lock()
		}
		writeStatus(w, f.analyzeStatus)
		_, _ = w.Write([]byte(strings.ReplaceAll(f.analyzeBody, "PAGE", body["page_url"].(string))))
	case generatePath:
		f.generateReqs = append(f.generateReqs, body)
		writeStatus(w, f.generateCode)
		_, _ = w.Write([]byte(f.generateBody))
	case downloadPath:
		writeStatus(w, f.downloadCode)
		_, _ = w.Write([]byte(f.downloadBody))
	default:
		http.NotFound(w, r)
	}
}

func writeStatus(w http.ResponseWriter, code int) {
	if code == 0 {
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
}

const acmeAnalysis = `{
	"product_name": "Acme",
	"target_audience": "young pros",
	"catchphrase": "Go Further",
	"benefit1": "Fast",
	"benefit2": "Cheap",
	"cta_text": "Buy Now",
	"character_image_url": "https://img/x.png",
	"generated_prompt": "server prompt",
	"page_url": "PAGE"
}`

func newTestSession(t *testing.T, backend *fakeBackend) *Session {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	return NewSession(NewClient(Config{BaseURL: srv.URL + "/"}, nil), logger.Nop())
}

func TestAnalyzeRejectsBlankURL(t *testing.T) {
	backend := &fakeBackend{analyzeBody: acmeAnalysis}
	session := newTestSession(t, backend)

	for _, url := range []string{"", "   ", "\t\n"} {
		if err := session.Analyze(context.Background(), url); !errors.Is(err, ErrEmptyURL) {
			t.Errorf("Analyze(%q) error = %v, want ErrEmptyURL", url, err)
		}
		if err := session.Generate(context.Background(), url); !errors.Is(err, ErrEmptyURL) {
			t.Errorf("Generate(%q) error = %v, want ErrEmptyURL", url, err)
		}
	}
	if n := atomic.LoadInt32(&backend.calls); n != 0 {
		t.Errorf("network calls = %d, want 0", n)
	}
}

func TestSessionEndToEnd(t *testing.T) {
	backend := &fakeBackend{
		analyzeBody:  acmeAnalysis,
		generateBody: `{"video_url":"https://cdn.example/acme.mp4","status":"success"}`,
		downloadBody: "mp4-bytes",
	}
	session := newTestSession(t, backend)
	ctx := context.Background()

	if err := session.Analyze(ctx, "https://example.com"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	st := session.Snapshot()
	want := prompt.ProductInfo{
		ProductName:    "Acme",
		TargetAudience: "young pros",
		Catchphrase:    "Go Further",
		Benefit1:       "Fast",
		Benefit2:       "Cheap",
		Offer:          "",
		CTAText:        "Buy Now",
	}
	if st.ProductInfo == nil || *st.ProductInfo != want {
		t.Fatalf("ProductInfo = %+v, want %+v", st.ProductInfo, want)
	}
	if st.CharacterImageURL != "https://img/x.png" {
		t.Errorf("CharacterImageURL = %q", st.CharacterImageURL)
	}
	if st.Synthesis != Synthesized || st.Analyzing {
		t.Errorf("state = %v analyzing=%v", st.Synthesis, st.Analyzing)
	}
	for _, v := range []string{"Acme", "young pros", "Go Further", "Fast", "Cheap", "Buy Now", "[オファー]"} {
		if !strings.Contains(st.Prompt, v) {
			t.Errorf("first prompt missing %q", v)
		}
	}

	if err := session.Generate(ctx, "https://example.com"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	st = session.Snapshot()
	if st.Result == nil || st.Result.VideoURL != "https://cdn.example/acme.mp4" || st.Result.Error != "" {
		t.Fatalf("Result = %+v", st.Result)
	}
	sent := backend.generateReqs[0]
	if sent["prompt"] != st.Prompt || sent["character_image_url"] != "https://img/x.png" || sent["page_url"] != "https://example.com" {
		t.Errorf("generate request = %v", sent)
	}

	var buf bytes.Buffer
	if err := session.Download(ctx, &buf); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if buf.String() != "mp4-bytes" {
		t.Errorf("downloaded %q", buf.String())
	}
}

func TestAnalyzeFailure(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "serverMessage", status: http.StatusInternalServerError, body: `{"error":"Page analysis failed: timeout"}`, wantMsg: "Page analysis failed: timeout"},
		{name: "noMessage", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantMsg: analysisFallback},
		{name: "emptyBody", status: http.StatusInternalServerError, body: ``, wantMsg: analysisFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newTestSession(t, &fakeBackend{analyzeStatus: tt.status, analyzeBody: tt.body})
			err := session.Analyze(context.Background(), "https://example.com")
			if err == nil || err.Error() != tt.wantMsg {
				t.Fatalf("Analyze() error = %v, want %q", err, tt.wantMsg)
			}
			st := session.Snapshot()
			if st.ProductInfo != nil || st.AnalysisError != tt.wantMsg || st.Analyzing {
				t.Errorf("state = %+v", st)
			}
			if st.Synthesis != AwaitingFirstSynthesis {
				t.Errorf("Synthesis = %v, want awaiting", st.Synthesis)
			}
		})
	}
}

func TestAnalyzeTransportFailureUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	session := NewSession(NewClient(Config{BaseURL: srv.URL}, nil), logger.Nop())

	err := session.Analyze(context.Background(), "https://example.com")
	if err == nil || err.Error() != analysisFallback {
		t.Errorf("Analyze() error = %v, want fallback", err)
	}
}

func TestGenerateSurfacesServerError(t *testing.T) {
	session := newTestSession(t, &fakeBackend{
		generateCode: http.StatusInternalServerError,
		generateBody: `{"error":"quota exceeded"}`,
	})

	err := session.Generate(context.Background(), "https://example.com")
	if err == nil || err.Error() != "quota exceeded" {
		t.Fatalf("Generate() error = %v, want quota exceeded", err)
	}
	st := session.Snapshot()
	if st.Result == nil || st.Result.Error != "quota exceeded" || st.Result.VideoURL != "" {
		t.Errorf("Result = %+v", st.Result)
	}
	if st.Generating {
		t.Error("Generating still set after failure")
	}
}

func TestGenerateFallbackAndContentPolicy(t *testing.T) {
	t.Run("fallback", func(t *testing.T) {
		session := newTestSession(t, &fakeBackend{generateCode: http.StatusInternalServerError, generateBody: `{}`})
		if err := session.Generate(context.Background(), "https://example.com"); err == nil || err.Error() != generationFallback {
			t.Errorf("Generate() error = %v, want fallback", err)
		}
	})
	t.Run("contentPolicy", func(t *testing.T) {
		session := newTestSession(t, &fakeBackend{
			generateCode: http.StatusBadRequest,
			generateBody: `{"error":"flagged","error_type":"content_policy_violation","suggestions":["a","b"]}`,
		})
		_ = session.Generate(context.Background(), "https://example.com")
		res := session.Snapshot().Result
		if res == nil || res.ErrorType != "content_policy_violation" || len(res.Suggestions) != 2 {
			t.Errorf("Result = %+v", res)
		}
	})
}

func TestGenerateOmitsEmptyPrompt(t *testing.T) {
	backend := &fakeBackend{generateBody: `{"video_url":"https://cdn.example/v.mp4"}`}
	session := newTestSession(t, backend)

	if err := session.Generate(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, ok := backend.generateReqs[0]["prompt"]; ok {
		t.Errorf("request carried a prompt: %v", backend.generateReqs[0])
	}
	if _, ok := backend.generateReqs[0]["product_info"]; ok {
		t.Errorf("request carried product_info before analysis: %v", backend.generateReqs[0])
	}
}

func TestDownloadWithoutVideoIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	session := newTestSession(t, backend)
	session.EditPrompt("keep me")
	before := session.Snapshot()

	var buf bytes.Buffer
	if err := session.Download(context.Background(), &buf); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if n := atomic.LoadInt32(&backend.calls); n != 0 {
		t.Errorf("network calls = %d, want 0", n)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes", buf.Len())
	}
	after := session.Snapshot()
	if after.Prompt != before.Prompt || after.Result != nil {
		t.Errorf("state changed: %+v", after)
	}
}

func TestDownloadFailureUsesFixedMessage(t *testing.T) {
	session := newTestSession(t, &fakeBackend{
		generateBody: `{"video_url":"https://cdn.example/v.mp4"}`,
		downloadCode: http.StatusInternalServerError,
		downloadBody: `{"error":"upstream 404"}`,
	})
	if err := session.Generate(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	err := session.Download(context.Background(), &bytes.Buffer{})
	if !errors.Is(err, ErrDownload) || err.Error() != downloadFallback {
		t.Errorf("Download() error = %v, want %q", err, downloadFallback)
	}
}

func TestRegenerateRestoresTemplate(t *testing.T) {
	session := newTestSession(t, &fakeBackend{analyzeBody: acmeAnalysis})
	if err := session.Analyze(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	original := session.Snapshot().Prompt

	session.EditPrompt("completely custom")
	if got := session.Snapshot().Prompt; got != "completely custom" {
		t.Fatalf("Prompt = %q after edit", got)
	}
	if got := session.Regenerate(); got != original {
		t.Errorf("Regenerate() did not restore the template output")
	}
}

func TestEditFieldDoesNotResynthesize(t *testing.T) {
	session := newTestSession(t, &fakeBackend{analyzeBody: acmeAnalysis})
	if err := session.Analyze(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	before := session.Snapshot().Prompt

	if err := session.EditField(prompt.FieldProductName, "Zenith"); err != nil {
		t.Fatalf("EditField() error = %v", err)
	}
	session.SetCharacterImage(" https://img/y.png ")
	st := session.Snapshot()
	if st.Prompt != before {
		t.Error("EditField() changed the prompt")
	}
	if st.ProductInfo.ProductName != "Zenith" || st.CharacterImageURL != "https://img/y.png" {
		t.Errorf("state = %+v", st)
	}

	regenerated := session.Regenerate()
	if regenerated != strings.ReplaceAll(before, "Acme", "Zenith") {
		t.Error("regenerating after one field edit changed more than that field")
	}

	if err := session.EditField(prompt.Field("price"), "x"); err == nil {
		t.Error("EditField(unknown) error = nil")
	}
}

func TestRegenerateWithoutProductInfo(t *testing.T) {
	session := NewSession(NewClient(Config{}, nil), nil)
	if got := session.Regenerate(); got != prompt.Synthesize(prompt.ProductInfo{}) {
		t.Error("Regenerate() without analysis should synthesize the all-empty record")
	}
}

func TestAnalyzeDiscardsStaleResponse(t *testing.T) {
	backend := &fakeBackend{
		analyzeBody:  strings.Replace(acmeAnalysis, `"Acme"`, `"PAGE"`, 1),
		analyzeDelay: map[string]time.Duration{"https://slow.example": 150 * time.Millisecond},
	}
	session := newTestSession(t, backend)

	slowDone := make(chan error, 1)
	go func() { slowDone <- session.Analyze(context.Background(), "https://slow.example") }()

	time.Sleep(30 * time.Millisecond)
	if err := session.Analyze(context.Background(), "https://fast.example"); err != nil {
		t.Fatalf("Analyze(fast) error = %v", err)
	}
	if err := <-slowDone; !errors.Is(err, ErrStale) {
		t.Errorf("Analyze(slow) error = %v, want ErrStale", err)
	}

	st := session.Snapshot()
	if st.ProductInfo == nil || st.ProductInfo.ProductName != "https://fast.example" || st.PageURL != "https://fast.example" {
		t.Errorf("state = %+v, want the latest analysis", st)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	session := newTestSession(t, &fakeBackend{analyzeBody: acmeAnalysis})
	if err := session.Analyze(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	st := session.Snapshot()
	st.ProductInfo.ProductName = "mutated"
	if session.Snapshot().ProductInfo.ProductName != "Acme" {
		t.Error("Snapshot() shares ProductInfo with the session")
	}
}

func TestClientEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{base: "", want: "/api/analyze-page"},
		{base: "https://api.example.com/", want: "https://api.example.com/api/analyze-page"},
		{base: " http://localhost:5001 ", want: "http://localhost:5001/api/analyze-page"},
	}
	for _, tt := range tests {
		if got := NewClient(Config{BaseURL: tt.base}, nil).endpoint(analyzePath); got != tt.want {
			t.Errorf("endpoint(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestGenerateRequestCarriesProductInfo(t *testing.T) {
	backend := &fakeBackend{analyzeBody: acmeAnalysis, generateBody: `{"video_url":"https://cdn.example/v.mp4"}`}
	session := newTestSession(t, backend)
	if err := session.Analyze(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if err := session.Generate(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	raw, _ := json.Marshal(backend.generateReqs[0]["product_info"])
	var info prompt.ProductInfo
	if err := json.Unmarshal(raw, &info); err != nil || info.ProductName != "Acme" {
		t.Errorf("product_info = %s", raw)
	}
}
