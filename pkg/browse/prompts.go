package browse

import (
	"fmt"
	"strings"

	"github.com/entrhq/wander/pkg/browser"
)

const intentPromptTemplate = `You are about to browse the web on behalf of your user.

Goal: %s

Write one short sentence, in first person, describing what you are going to look for. Keep it under 25 words and do not mention tools or searching mechanics.`

const interpretSystemPrompt = `You are reading a web page on behalf of your user and reacting to it as a curious companion would.

Respond with a JSON object:
{
  "thought": "one sentence of private reasoning about what this page tells you",
  "reaction": "one short, personable sentence reacting to the page for the user",
  "keyPoints": ["up to five short factual takeaways from the page"]
}

Respond with only the JSON object.`

const interpretUserTemplate = `Goal: %s

Page title: %s
Page URL: %s

Page text:
%s`

const decidePromptTemplate = `You are browsing the web toward a goal and must choose the next step.

Goal: %s
Pages visited so far: %d of %d

%s
Links on the current page:
%s
%s
Respond with a JSON object:
{
  "continue": true or false,
  "nextUrl": "the exact URL of the link to follow next, or empty if stopping",
  "reason": "one short sentence explaining the choice"
}

Choose a link only from the lists above. Stop when the goal is satisfied or no link looks promising. Respond with only the JSON object.`

const summaryPromptTemplate = `You browsed the web toward a goal and are now reporting back to your user in a warm, first-person voice.

Goal: %s

What you found, page by page:
%s

Write a short summary (3-6 sentences) of what you learned, woven together across pages. Mention anything surprising. Do not list URLs.`

func intentPrompt(goal string) string {
	return fmt.Sprintf(intentPromptTemplate, goal)
}

func interpretUserPrompt(goal string, result *browser.PageResult, text string) string {
	return fmt.Sprintf(interpretUserTemplate, goal, result.Title, result.FinalURL, text)
}

func decidePrompt(goal string, visited, maxPages int, visitedBlock, currentLinks, previousLinks string) string {
	return fmt.Sprintf(decidePromptTemplate, goal, visited, maxPages, visitedBlock, currentLinks, previousLinks)
}

func summaryPrompt(goal string, pages []PageVisit) string {
	var b strings.Builder
	for i, p := range pages {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, p.Title, p.URL)
		for _, kp := range p.KeyPoints {
			fmt.Fprintf(&b, "   - %s\n", kp)
		}
	}
	return fmt.Sprintf(summaryPromptTemplate, goal, b.String())
}

// formatLinks renders a numbered link list for the decision prompt.
func formatLinks(links []browser.Link, max int) string {
	if len(links) == 0 {
		return "(none)\n"
	}
	if len(links) > max {
		links = links[:max]
	}
	var b strings.Builder
	for i, l := range links {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			text = "(no text)"
		}
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, text, l.Href)
	}
	return b.String()
}

func formatVisited(pages []PageVisit) string {
	if len(pages) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Already visited:\n")
	for _, p := range pages {
		fmt.Fprintf(&b, "- %s (%s)\n", p.Title, p.URL)
	}
	b.WriteString("\n")
	return b.String()
}
