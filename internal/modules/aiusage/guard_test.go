package aiusage

import (
	"context"
	"errors"
	"testing"
)

type countingSpender struct {
	left  int
	calls []string
}

func (s *countingSpender) UseToken(_ context.Context, uid string) error {
	s.calls = append(s.calls, uid)
	if s.left == 0 {
		return ErrInsufficientTokens
	}
	s.left--
	return nil
}

type echoProvider struct {
	summaries int
	answers   int
}

func (p *echoProvider) Summarize(_ context.Context, title, _ string) (string, error) {
	p.summaries++
	return "about " + title, nil
}

func (p *echoProvider) Answer(_ context.Context, title, _, question string) (string, error) {
	p.answers++
	return title + ": " + question, nil
}

func TestGuard_SpendsBeforeEachCall(t *testing.T) {
	spender := &countingSpender{left: 2}
	provider := &echoProvider{}
	g := Guard(spender, provider, "uid-1")
	ctx := context.Background()

	if got, err := g.Summarize(ctx, "Big Ben", "text"); err != nil || got != "about Big Ben" {
		t.Fatalf("summarize: %q, %v", got, err)
	}
	if got, err := g.Answer(ctx, "Big Ben", "text", "why?"); err != nil || got != "Big Ben: why?" {
		t.Fatalf("answer: %q, %v", got, err)
	}
	if len(spender.calls) != 2 || spender.calls[0] != "uid-1" {
		t.Fatalf("unexpected spend calls %v", spender.calls)
	}
}

func TestGuard_ExhaustedQuotaSkipsProvider(t *testing.T) {
	spender := &countingSpender{left: 0}
	provider := &echoProvider{}
	g := Guard(spender, provider, "uid-1")

	if _, err := g.Summarize(context.Background(), "Big Ben", "text"); !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("expected ErrInsufficientTokens, got %v", err)
	}
	if _, err := g.Answer(context.Background(), "Big Ben", "text", "q"); !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("expected ErrInsufficientTokens, got %v", err)
	}
	if provider.summaries+provider.answers != 0 {
		t.Fatal("provider must not be called without a token")
	}
}
