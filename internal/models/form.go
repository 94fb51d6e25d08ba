package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Question type constants (the only Airtable field types this system maps)
const (
	QuestionTypeSingleLineText      = "singleLineText"
	QuestionTypeMultilineText       = "multilineText"
	QuestionTypeSingleSelect        = "singleSelect"
	QuestionTypeMultipleSelects     = "multipleSelects"
	QuestionTypeMultipleAttachments = "multipleAttachments"
)

// Condition operator constants
const (
	OperatorEquals    = "equals"
	OperatorNotEquals = "notEquals"
	OperatorContains  = "contains"
)

// Conditional logic constants
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

// SupportedQuestionType reports whether t is one of the five field types
// the submission flow knows how to validate and write back.
func SupportedQuestionType(t string) bool {
	switch t {
	case QuestionTypeSingleLineText,
		QuestionTypeMultilineText,
		QuestionTypeSingleSelect,
		QuestionTypeMultipleSelects,
		QuestionTypeMultipleAttachments:
		return true
	}
	return false
}

// Condition is a single predicate inside a question's conditional rules.
type Condition struct {
	QuestionKey string      `json:"questionKey"`
	Operator    string      `json:"operator"`
	Value       interface{} `json:"value"`
}

// ConditionalRules is declared on save but not evaluated during submission.
type ConditionalRules struct {
	Logic      string      `json:"logic"`
	Conditions []Condition `json:"conditions"`
}

// Question maps a form input to an Airtable field. QuestionKey is the
// answer-map key and must be unique within a form.
type Question struct {
	QuestionKey      string            `json:"questionKey"`
	AirtableFieldID  string            `json:"airtableFieldId"`
	Label            string            `json:"label"`
	Type             string            `json:"type"`
	Required         bool              `json:"required"`
	ConditionalRules *ConditionalRules `json:"conditionalRules,omitempty"`
}

// Questions is the ordered question list of a form, stored as a single
// jsonb column and replaced wholesale on update.
type Questions []Question

// Value implements driver.Valuer for Questions
func (q Questions) Value() (driver.Value, error) {
	if q == nil {
		return json.Marshal(Questions{})
	}
	return json.Marshal(q)
}

// Scan implements sql.Scanner for Questions
func (q *Questions) Scan(value interface{}) error {
	if value == nil {
		*q = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, q)
}

// Form is owned by exactly one user and references a remote base/table
// pair. Owner and the base/table pair are immutable after creation.
type Form struct {
	ID              string    `gorm:"column:id;primaryKey" json:"id"`
	OwnerID         string    `gorm:"column:owner_id;index" json:"owner"`
	AirtableBaseID  string    `gorm:"column:airtable_base_id" json:"airtableBaseId"`
	AirtableTableID string    `gorm:"column:airtable_table_id" json:"airtableTableId"`
	Questions       Questions `gorm:"column:questions;type:jsonb" json:"questions"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for GORM
func (Form) TableName() string {
	return "forms"
}

// ValidateQuestions checks the invariants a question list must satisfy
// before it replaces a form's questions: every type supported, and any
// conditionalRules block carrying a valid logic operator over a non-empty
// condition list.
func ValidateQuestions(questions []Question) error {
	for _, q := range questions {
		if !SupportedQuestionType(q.Type) {
			return fmt.Errorf("Unsupported field type: %s", q.Type)
		}
		if q.ConditionalRules != nil {
			if q.ConditionalRules.Logic != LogicAnd && q.ConditionalRules.Logic != LogicOr {
				return errors.New("Invalid logic operator")
			}
			if len(q.ConditionalRules.Conditions) == 0 {
				return errors.New("Conditions must be a non-empty array")
			}
		}
	}
	return nil
}
