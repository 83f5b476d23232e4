// Package decoder extracts structured objects from free-text LLM output.
//
// Models asked for JSON rarely return only JSON: answers arrive wrapped in
// markdown fences, prefixed with prose, or with small syntax defects such
// as trailing commas and single-quoted strings. The decoder applies a fixed
// fallback order (fenced block, bare object scan, forgiving repairs) and
// leaves line-based heuristics (ExtractBullets) as the caller's last resort.
package decoder

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedBlockRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	bulletLineRe    = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
)

// Extract returns the first JSON-like object found in raw, decoded into a
// map. The second return value is false when no object could be recovered;
// callers are expected to fall back to their own heuristics in that case.
func Extract(raw string) (map[string]interface{}, bool) {
	for _, candidate := range candidates(raw) {
		if obj, ok := tryDecode(candidate); ok {
			return obj, true
		}
		if obj, ok := tryDecode(Repair(candidate)); ok {
			return obj, true
		}
	}
	return nil, false
}

// candidates collects object-shaped substrings in fallback order:
// fenced markdown blocks first, then a balanced-brace scan of the raw text.
func candidates(raw string) []string {
	var out []string

	for _, match := range fencedBlockRe.FindAllStringSubmatch(raw, -1) {
		out = append(out, match[1])
	}

	if obj := balancedObject(raw); obj != "" {
		out = append(out, obj)
	}

	return out
}

// balancedObject returns the first brace-balanced {...} substring of raw,
// or "" if none exists. Braces inside double-quoted strings are ignored.
func balancedObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}

func tryDecode(candidate string) (map[string]interface{}, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, false
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// Repair applies forgiving fixes to almost-JSON text: trailing commas are
// removed, unquoted object keys are quoted, and single-quoted strings are
// converted to double quotes when the text uses no double quotes at all.
func Repair(s string) string {
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2":`)

	// Single-quote conversion is only safe when the object never uses
	// double quotes, otherwise apostrophes inside values would break it.
	if !strings.Contains(s, `"`) && strings.Contains(s, "'") {
		s = strings.ReplaceAll(s, "'", `"`)
	}

	return s
}

// GetString reads a string field from a decoded object, returning "" when
// the field is absent or not a string.
func GetString(obj map[string]interface{}, key string) string {
	if v, ok := obj[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// GetBool reads a boolean field from a decoded object. String spellings of
// true/false are accepted since models frequently quote booleans.
func GetBool(obj map[string]interface{}, key string) (bool, bool) {
	switch v := obj[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
	}
	return false, false
}

// GetStringSlice reads an array-of-strings field from a decoded object,
// skipping non-string elements.
func GetStringSlice(obj map[string]interface{}, key string) []string {
	arr, ok := obj[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// ExtractBullets pulls bulleted or numbered lines out of free text. It is
// the heuristic of last resort when Extract finds no object at all.
func ExtractBullets(raw string, max int) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		match := bulletLineRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		point := strings.TrimSpace(match[1])
		if point == "" {
			continue
		}
		out = append(out, point)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
