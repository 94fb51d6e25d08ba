package forms

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/formlet/formlet-api/internal/models"
)

// RecordCreator writes one record into a remote table
type RecordCreator interface {
	CreateRecord(ctx context.Context, baseID, tableID, accessToken string, fields map[string]interface{}) (string, error)
}

// ResponseCreator persists accepted submissions
type ResponseCreator interface {
	Create(ctx context.Context, response *models.Response) error
}

// Synchronizer pushes a validated answer map into Airtable and records the
// resulting response locally. The remote write happens exactly once per
// call; on remote failure nothing is persisted and the remote error is
// returned to the caller. Local persistence is not transactional with the
// remote write: a persistence failure after a successful remote write
// leaves the remote record without a local counterpart.
type Synchronizer struct {
	records   RecordCreator
	responses ResponseCreator
}

func NewSynchronizer(records RecordCreator, responses ResponseCreator) *Synchronizer {
	return &Synchronizer{records: records, responses: responses}
}

// Sync projects answers onto Airtable field IDs, creates the remote
// record, and persists the Response referencing it.
func (s *Synchronizer) Sync(ctx context.Context, form *models.Form, answers map[string]interface{}, accessToken string) (*models.Response, error) {
	// Keyed by field ID, in form order: last write wins if two questions
	// share a field ID. Absent optional answers are not sent.
	fields := make(map[string]interface{}, len(form.Questions))
	for _, q := range form.Questions {
		value, ok := answers[q.QuestionKey]
		if !ok || value == nil {
			continue
		}
		fields[q.AirtableFieldID] = value
	}

	recordID, err := s.records.CreateRecord(ctx, form.AirtableBaseID, form.AirtableTableID, accessToken, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create airtable record: %w", err)
	}

	response := &models.Response{
		ID:               uuid.NewString(),
		FormID:           form.ID,
		AirtableRecordID: recordID,
		Answers:          models.JSONB(answers),
	}
	if err := s.responses.Create(ctx, response); err != nil {
		return nil, fmt.Errorf("failed to persist response: %w", err)
	}
	return response, nil
}
