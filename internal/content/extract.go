package content

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON decodes the JSON object in an LLM reply. It tries the whole
// reply first, then the greedy span from the first '{' to the last '}'.
// Anything else yields fallback.
func ExtractJSON[T any](text string, fallback T) T {
	text = stripFences(strings.TrimSpace(text))
	if text == "" {
		return fallback
	}
	if strings.HasPrefix(text, "{") {
		var out T
		if err := json.Unmarshal([]byte(text), &out); err == nil {
			return out
		}
	}
	i := strings.Index(text, "{")
	j := strings.LastIndex(text, "}")
	if i < 0 || j <= i {
		return fallback
	}
	var out T
	if err := json.Unmarshal([]byte(text[i:j+1]), &out); err != nil {
		return fallback
	}
	return out
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	firstNL := strings.IndexByte(s, '\n')
	if firstNL == -1 {
		return strings.TrimSpace(strings.Trim(s, "`"))
	}
	s = s[firstNL+1:]
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// textList decodes a JSON list of strings, tolerating a single
// comma-separated string and non-string items.
type textList []string

func (l *textList) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*l = nil
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*l = out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			var s string
			switch it := item.(type) {
			case string:
				s = it
			case map[string]any:
				s = firstText(it)
			default:
				s = fmt.Sprint(it)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*l = out
	default:
		return fmt.Errorf("expected list or string, got %T", raw)
	}
	return nil
}

// textField decodes any scalar as a string; null stays empty.
type textField string

func (f *textField) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*f = ""
	case string:
		*f = textField(v)
	default:
		*f = textField(fmt.Sprint(v))
	}
	return nil
}

func firstText(m map[string]any) string {
	for _, key := range []string{"text", "insight", "point", "summary", "value"} {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	return ""
}
