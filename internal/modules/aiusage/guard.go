package aiusage

import (
	"context"

	"lookout/internal/ai"
)

// TokenSpender deducts one enrichment token for a user.
type TokenSpender interface {
	UseToken(ctx context.Context, uid string) error
}

// Guard wraps provider so that every call first spends one of uid's tokens.
// An exhausted quota surfaces as ErrInsufficientTokens and the provider is
// not called.
func Guard(spender TokenSpender, provider ai.LLMProvider, uid string) ai.LLMProvider {
	return &guarded{spender: spender, provider: provider, uid: uid}
}

type guarded struct {
	spender  TokenSpender
	provider ai.LLMProvider
	uid      string
}

func (g *guarded) Summarize(ctx context.Context, title, text string) (string, error) {
	if err := g.spender.UseToken(ctx, g.uid); err != nil {
		return "", err
	}
	return g.provider.Summarize(ctx, title, text)
}

func (g *guarded) Answer(ctx context.Context, title, text, question string) (string, error) {
	if err := g.spender.UseToken(ctx, g.uid); err != nil {
		return "", err
	}
	return g.provider.Answer(ctx, title, text, question)
}
