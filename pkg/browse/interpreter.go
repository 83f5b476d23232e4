package browse

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/wander/pkg/browser"
	"github.com/entrhq/wander/pkg/llm"
	"github.com/entrhq/wander/pkg/llm/decoder"
	"github.com/entrhq/wander/pkg/logging"
	"github.com/entrhq/wander/pkg/types"
)

const (
	interpretTimeout = 30 * time.Second

	// interpretMaxTokens bounds how much page text goes into the prompt.
	interpretMaxTokens = 2000

	maxKeyPoints = 5
)

// interpretation is the model's read of one page.
type interpretation struct {
	Thought   string
	Reaction  string
	KeyPoints []string
}

// interpreter asks the model to react to a visited page. It never returns
// an error: a failed or unparseable call degrades to a neutral reaction so
// one bad interpretation cannot kill a session.
type interpreter struct {
	provider llm.Provider
	logger   *logging.Logger
}

func newInterpreter(provider llm.Provider, logger *logging.Logger) *interpreter {
	return &interpreter{provider: provider, logger: logger}
}

// Interpret produces a reaction and key points for the page. When a
// screenshot was captured it rides along as a vision attachment.
func (i *interpreter) Interpret(ctx context.Context, goal string, result *browser.PageResult) *interpretation {
	callCtx, cancel := context.WithTimeout(ctx, interpretTimeout)
	defer cancel()

	text := llm.TruncateTokens(result.TextContent, i.provider.GetModel(), interpretMaxTokens)

	messages := []*types.Message{
		types.NewSystemMessage(interpretSystemPrompt),
	}
	userPrompt := interpretUserPrompt(goal, result, text)
	if len(result.Screenshot) > 0 {
		messages = append(messages, types.NewVisionMessage(userPrompt, result.Screenshot, "image/jpeg"))
	} else {
		messages = append(messages, types.NewUserMessage(userPrompt))
	}

	raw, err := i.provider.VisionAnswer(callCtx, messages)
	if err != nil {
		i.logger.Warnf("interpretation failed for %s: %v", result.FinalURL, err)
		return fallbackInterpretation(result)
	}
	return parseInterpretation(raw, result)
}

// parseInterpretation decodes the model output, falling back to bullet
// extraction from free text when no JSON object can be recovered.
func parseInterpretation(raw string, result *browser.PageResult) *interpretation {
	obj, ok := decoder.Extract(raw)
	if !ok {
		points := decoder.ExtractBullets(raw, maxKeyPoints)
		out := fallbackInterpretation(result)
		if len(points) > 0 {
			out.KeyPoints = points
		}
		return out
	}

	out := &interpretation{
		Thought:   decoder.GetString(obj, "thought"),
		Reaction:  decoder.GetString(obj, "reaction"),
		KeyPoints: decoder.GetStringSlice(obj, "keyPoints"),
	}
	if len(out.KeyPoints) > maxKeyPoints {
		out.KeyPoints = out.KeyPoints[:maxKeyPoints]
	}
	if out.Reaction == "" {
		out.Reaction = fallbackReaction(result)
	}
	return out
}

func fallbackInterpretation(result *browser.PageResult) *interpretation {
	return &interpretation{Reaction: fallbackReaction(result)}
}

func fallbackReaction(result *browser.PageResult) string {
	if result.Title != "" {
		return fmt.Sprintf("Had a look at %q.", result.Title)
	}
	return "Had a look at this page."
}
