package models

import "time"

// Response records one accepted submission. Answers are keyed by
// questionKey exactly as the form defined them at submission time; later
// edits to the form do not rewrite old responses.
// DeletedInAirtable is a write target for a future sync-back; nothing in
// the submission flow sets it.
type Response struct {
	ID                string    `gorm:"column:id;primaryKey" json:"id"`
	FormID            string    `gorm:"column:form_id;index" json:"formId"`
	AirtableRecordID  string    `gorm:"column:airtable_record_id" json:"airtableRecordId"`
	Answers           JSONB     `gorm:"column:answers;type:jsonb" json:"answers"`
	DeletedInAirtable bool      `gorm:"column:deleted_in_airtable" json:"deletedInAirtable"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for GORM
func (Response) TableName() string {
	return "responses"
}
