package forms

import (
	"fmt"
	"strings"

	"github.com/formlet/formlet-api/internal/models"
)

// Preview renders a short summary string for a response: the first three
// answered questions in form order, as "label: value" pairs.
func Preview(questions models.Questions, answers models.JSONB) string {
	parts := make([]string, 0, previewFieldCount)
	for _, q := range questions {
		if len(parts) == previewFieldCount {
			break
		}
		value, ok := answers[q.QuestionKey]
		if !ok || value == nil {
			continue
		}
		rendered := renderAnswer(value)
		if rendered == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", q.Label, rendered))
	}
	return strings.Join(parts, ", ")
}

// renderAnswer flattens a normalized answer value for display. Answers
// read back from jsonb arrive as string, []interface{}, or attachment
// maps.
func renderAnswer(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []Attachment:
		names := make([]string, 0, len(v))
		for _, a := range v {
			names = append(names, a.Filename)
		}
		return strings.Join(names, ", ")
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			switch it := item.(type) {
			case string:
				items = append(items, it)
			case map[string]interface{}:
				if name, ok := it["filename"].(string); ok {
					items = append(items, name)
				}
			}
		}
		return strings.Join(items, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
