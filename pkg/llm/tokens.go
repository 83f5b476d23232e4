package llm

import (
	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used when a model has no registered tiktoken encoding
// (common with OpenAI-compatible local models).
const fallbackEncoding = "cl100k_base"

// TruncateTokens cuts text down to at most maxTokens tokens for the given
// model. Page bodies routinely exceed any reasonable prompt budget, so the
// interpreter and summarizer trim them before building prompts.
//
// When no encoding can be resolved at all, a conservative rune cut of
// 4*maxTokens is applied instead.
func TruncateTokens(text, model string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		runes := []rune(text)
		if len(runes) <= maxTokens*4 {
			return text
		}
		return string(runes[:maxTokens*4])
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}

// CountTokens returns the token count of text for the given model, falling
// back to a rune-count estimate when no encoding is available.
func CountTokens(text, model string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		return len([]rune(text)) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
