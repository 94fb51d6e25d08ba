package forms

import (
	"fmt"

	"github.com/formlet/formlet-api/internal/airtable"
	"github.com/formlet/formlet-api/internal/models"
)

// Attachment is one uploaded file in an answer, with a URL the serving
// host makes publicly reachable so Airtable can fetch it.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

type ValidationErrorKind int

const (
	// KindMissingRequired: a required question got no usable value (400)
	KindMissingRequired ValidationErrorKind = iota
	// KindInvalidChoice: a select answer is not among the field's
	// configured options (400)
	KindInvalidChoice
	// KindFieldNotFound: a question references a field that no longer
	// exists remotely. A server-side configuration fault, not bad user
	// input (500).
	KindFieldNotFound
)

type ValidationError struct {
	Kind    ValidationErrorKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks submitted values and uploaded files against the form's
// questions and the live field catalog, producing the normalized answer
// map. Questions are processed in form order and validation short-circuits
// on the first failure; no partial result is ever returned.
func Validate(questions []models.Question, fields []airtable.Field, values map[string][]string, files map[string][]Attachment) (map[string]interface{}, *ValidationError) {
	fieldsByID := make(map[string]airtable.Field, len(fields))
	for _, f := range fields {
		fieldsByID[f.ID] = f
	}

	answers := make(map[string]interface{}, len(questions))

	for _, q := range questions {
		if q.Type == models.QuestionTypeMultipleAttachments {
			attachments := files[q.QuestionKey]
			if attachments == nil {
				attachments = []Attachment{}
			}
			if q.Required && len(attachments) == 0 {
				return nil, missingRequired(q)
			}
			answers[q.QuestionKey] = attachments
			continue
		}

		raw := values[q.QuestionKey]

		if q.Type == models.QuestionTypeMultipleSelects {
			selected := raw
			if selected == nil {
				selected = []string{}
			}
			if q.Required && len(selected) == 0 {
				return nil, missingRequired(q)
			}
			field, ok := fieldsByID[q.AirtableFieldID]
			if !ok {
				return nil, fieldNotFound(q)
			}
			for _, v := range selected {
				if !validChoice(field, v) {
					return nil, invalidChoice(q, v)
				}
			}
			answers[q.QuestionKey] = selected
			continue
		}

		var value interface{}
		if len(raw) > 0 {
			value = raw[0]
		}
		if q.Required && (value == nil || value == "") {
			return nil, missingRequired(q)
		}

		field, ok := fieldsByID[q.AirtableFieldID]
		if !ok {
			return nil, fieldNotFound(q)
		}

		if q.Type == models.QuestionTypeSingleSelect {
			if s, ok := value.(string); ok && s != "" && !validChoice(field, s) {
				return nil, invalidChoice(q, s)
			}
		}

		answers[q.QuestionKey] = value
	}

	return answers, nil
}

func validChoice(field airtable.Field, value string) bool {
	if field.Options == nil {
		return false
	}
	for _, choice := range field.Options.Choices {
		if choice.Name == value {
			return true
		}
	}
	return false
}

func missingRequired(q models.Question) *ValidationError {
	return &ValidationError{
		Kind:    KindMissingRequired,
		Message: fmt.Sprintf("Required field missing: %s", q.Label),
	}
}

func invalidChoice(q models.Question, value string) *ValidationError {
	return &ValidationError{
		Kind:    KindInvalidChoice,
		Message: fmt.Sprintf("Invalid choice for %s: %s", q.Label, value),
	}
}

func fieldNotFound(q models.Question) *ValidationError {
	return &ValidationError{
		Kind:    KindFieldNotFound,
		Message: fmt.Sprintf("Airtable field not found for question: %s", q.Label),
	}
}
