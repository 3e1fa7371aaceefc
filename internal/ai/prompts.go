package ai

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when a model answers with no usable text.
var ErrEmptyResponse = errors.New("ai: empty response")

func summaryPrompt(title, text string) string {
	return fmt.Sprintf("You are a knowledgeable local tour guide. Summarize this encyclopedia entry about %q in 2-3 concise, friendly sentences for someone standing near it:\n\n%s",
		title, strings.TrimSpace(text))
}

func answerPrompt(title, text, question string) string {
	return fmt.Sprintf("Based on this info about %q:\n%s\n\nAnswer this question concisely: %s",
		title, strings.TrimSpace(text), strings.TrimSpace(question))
}

func validateInput(title, text string) error {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(text) == "" {
		return errors.New("ai: nothing to work from")
	}
	return nil
}
