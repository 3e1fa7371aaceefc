package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestPrompts(t *testing.T) {
	s := summaryPrompt("Big Ben", "  The clock tower.  ")
	if !strings.Contains(s, `"Big Ben"`) || !strings.HasSuffix(s, "The clock tower.") {
		t.Fatalf("unexpected summary prompt: %q", s)
	}

	a := answerPrompt("Big Ben", "The clock tower.", " How tall is it? ")
	for _, want := range []string{`"Big Ben"`, "The clock tower.", "Answer this question concisely: How tall is it?"} {
		if !strings.Contains(a, want) {
			t.Errorf("answer prompt missing %q: %q", want, a)
		}
	}
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr bool
	}{
		{name: "nil", resp: nil, wantErr: true},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, wantErr: true},
		{
			name: "joins text parts",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("First."), genai.Text("  "), genai.Text("Second.")}},
			}}},
			want: "First.\nSecond.",
		},
		{
			name: "only blanks",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text(" ")}},
			}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := responseText(tt.resp)
			if tt.wantErr {
				if !errors.Is(err, ErrEmptyResponse) {
					t.Fatalf("expected ErrEmptyResponse, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func newChatServer(t *testing.T, status int, body string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatGPT_Summarize(t *testing.T) {
	var seen chatRequest
	srv := newChatServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":" A famous clock. "}}]}`, &seen)
	p, err := NewChatGPTProvider("test-key", srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Summarize(context.Background(), "Big Ben", "The clock tower.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "A famous clock." {
		t.Fatalf("unexpected summary %q", got)
	}
	if seen.Model != chatGPTModel || len(seen.Messages) != 1 || !strings.Contains(seen.Messages[0].Content, "Big Ben") {
		t.Fatalf("unexpected request %+v", seen)
	}
}

func TestChatGPT_Answer(t *testing.T) {
	var seen chatRequest
	srv := newChatServer(t, http.StatusOK, `{"choices":[{"message":{"content":"96 metres."}}]}`, &seen)
	p, _ := NewChatGPTProvider("test-key", srv.URL)

	got, err := p.Answer(context.Background(), "Big Ben", "The clock tower.", "How tall?")
	if err != nil || got != "96 metres." {
		t.Fatalf("got %q, %v", got, err)
	}
	if !strings.Contains(seen.Messages[0].Content, "How tall?") {
		t.Fatalf("question missing from prompt: %q", seen.Messages[0].Content)
	}

	if _, err := p.Answer(context.Background(), "Big Ben", "x", "  "); err == nil {
		t.Fatal("expected an error for an empty question")
	}
}

func TestChatGPT_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "api error", status: http.StatusTooManyRequests, body: `{"error":{"message":"rate limited"}}`},
		{name: "empty choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "bad json", status: http.StatusBadGateway, body: `<html>`},
		{name: "bad status", status: http.StatusInternalServerError, body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newChatServer(t, tt.status, tt.body, nil)
			p, _ := NewChatGPTProvider("test-key", srv.URL)
			if _, err := p.Summarize(context.Background(), "Big Ben", "The clock tower."); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestNewProviders_RequireKey(t *testing.T) {
	if _, err := NewChatGPTProvider(" ", ""); err == nil {
		t.Error("expected chatgpt to reject an empty key")
	}
	if _, err := NewGeminiProvider(context.Background(), ""); err == nil {
		t.Error("expected gemini to reject an empty key")
	}
}
