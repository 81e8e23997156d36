package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/config"
)

func TestParseCategory(t *testing.T) {
	cases := map[string]catalog.Category{
		"electricals":             catalog.Electricals,
		"  Grocery\n":             catalog.Grocery,
		"`battery_products`":      catalog.Battery,
		"housewear":               catalog.Houseware,
		"unknown":                 catalog.Unknown,
		"supermarket":             catalog.Unknown,
		"kitchen appliances":      catalog.Unknown,
		"electronics. It's a TV.": catalog.Electronics,
	}
	for raw, want := range cases {
		if got := ParseCategory(raw); got != want {
			t.Fatalf("ParseCategory(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestPromptListsCategories(t *testing.T) {
	p := Prompt("LED Bulb", "9W, cool white")
	for _, want := range []string{"electricals", "fancy_gifts_toys", `"LED Bulb"`, "unknown"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
	if strings.Contains(p, "supermarket") {
		t.Fatal("supermarket is not a classification target")
	}
}

func newChatServer(t *testing.T, answer string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "Categorize the following product") {
			t.Errorf("request body missing prompt: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			fmt.Fprint(w, `{"error":{"message":"upstream down","type":"server_error"}}`)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%q}}]}`, answer)
		case strings.HasSuffix(r.URL.Path, "/messages"):
			fmt.Fprintf(w, `{"id":"m1","type":"message","role":"assistant","model":"claude",
"content":[{"type":"text","text":%q}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`, answer)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestOpenAIClassifier(t *testing.T) {
	srv, hits := newChatServer(t, "electricals", http.StatusOK)
	c := NewOpenAI(OpenAIOptions{APIKey: "test", BaseURL: srv.URL + "/v1/", Model: "deepseek/deepseek-chat", Timeout: 5 * time.Second})

	got, err := c.Classify(context.Background(), "LED Bulb", "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != catalog.Electricals {
		t.Fatalf("category = %q", got)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one request, got %d", hits.Load())
	}
}

func TestOpenAIClassifierFailure(t *testing.T) {
	srv, _ := newChatServer(t, "", http.StatusInternalServerError)
	c := NewOpenAI(OpenAIOptions{APIKey: "test", BaseURL: srv.URL + "/v1/", Model: "m", Timeout: 5 * time.Second})

	got, err := c.Classify(context.Background(), "LED Bulb", "")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got != catalog.Unknown {
		t.Fatalf("failure should yield unknown, got %q", got)
	}
}

func TestAnthropicClassifier(t *testing.T) {
	srv, _ := newChatServer(t, "grocery", http.StatusOK)
	c := NewAnthropic(AnthropicOptions{APIKey: "test", BaseURL: srv.URL, Model: "claude-3-5-haiku-latest", Timeout: 5 * time.Second})

	got, err := c.Classify(context.Background(), "Basmati rice", "5kg")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != catalog.Grocery {
		t.Fatalf("category = %q", got)
	}
}

type stubClassifier struct {
	category catalog.Category
	err      error
	calls    int
}

func (s *stubClassifier) Classify(context.Context, string, string) (catalog.Category, error) {
	s.calls++
	return s.category, s.err
}

func TestFailoverHoldsFallbackUntilWindowElapses(t *testing.T) {
	primary := &stubClassifier{err: errors.New("rate limited")}
	fallback := &stubClassifier{category: catalog.Sports}
	f := NewFailover(primary, fallback, 10*time.Minute)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	got, err := f.Classify(context.Background(), "Cricket bat", "")
	if err != nil || got != catalog.Sports {
		t.Fatalf("first classify = %q, %v", got, err)
	}
	if f.Mode() != modeDegraded {
		t.Fatalf("mode = %s", f.Mode())
	}

	now = now.Add(5 * time.Minute)
	_, _ = f.Classify(context.Background(), "Football", "")
	if primary.calls != 1 {
		t.Fatalf("primary retried inside hold window: %d calls", primary.calls)
	}

	primary.err = nil
	primary.category = catalog.Sports
	now = now.Add(6 * time.Minute)
	if _, err := f.Classify(context.Background(), "Shuttlecock", ""); err != nil {
		t.Fatalf("classify after hold: %v", err)
	}
	if primary.calls != 2 || f.Mode() != modeNormal {
		t.Fatalf("expected switch back to primary, calls=%d mode=%s", primary.calls, f.Mode())
	}
}

func TestFailoverBothFail(t *testing.T) {
	f := NewFailover(&stubClassifier{err: errors.New("a")}, &stubClassifier{err: errors.New("b")}, time.Minute)
	got, err := f.Classify(context.Background(), "x", "")
	if !errors.Is(err, ErrUnavailable) || got != catalog.Unknown {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Classifier
	cfg.Provider = "none"
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.(Disabled); !ok {
		t.Fatalf("expected Disabled, got %T", c)
	}

	cfg = config.DefaultConfig().Classifier
	cfg.APIKey = ""
	if _, err := New(cfg); err == nil {
		t.Fatal("expected missing key error")
	}

	cfg.APIKey = "k"
	cfg.FallbackProvider = "anthropic"
	cfg.FallbackModel = "claude-3-5-haiku-latest"
	c, err = New(cfg)
	if err != nil {
		t.Fatalf("New with fallback: %v", err)
	}
	if _, ok := c.(*Failover); !ok {
		t.Fatalf("expected *Failover, got %T", c)
	}
}

func TestInferProvider(t *testing.T) {
	cases := map[string]string{
		"deepseek/deepseek-chat-v3-0324:free": "openrouter",
		"claude-3-5-haiku-latest":             "anthropic",
		"gpt-4o-mini":                         "openai",
		"":                                    "none",
	}
	for model, want := range cases {
		if got := InferProvider(model); got != want {
			t.Fatalf("InferProvider(%q) = %q, want %q", model, got, want)
		}
	}
}
