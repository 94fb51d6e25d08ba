package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/formlet/formlet-api/internal/models"
)

const DefaultAPIURL = "https://api.airtable.com"

// ErrTableNotFound is returned when the base has no table matching the
// requested table ID. Callers treat it as a validation failure, not a
// remote outage.
var ErrTableNotFound = fmt.Errorf("table not found in this base")

// APIError is a non-2xx answer from the Airtable API, with the provider
// payload attached for the caller's error body.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airtable API error (status %d): %s", e.StatusCode, e.Body)
}

// Field is one column definition from a table's live field catalog.
type Field struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Type    string        `json:"type"`
	Options *FieldOptions `json:"options,omitempty"`
}

// FieldOptions carries the configured choices of select-type fields.
type FieldOptions struct {
	Choices []Choice `json:"choices,omitempty"`
}

type Choice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Identity is the answer of the whoami endpoint.
type Identity struct {
	ID      string
	Email   string
	Profile map[string]interface{}
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		baseURL: DefaultAPIURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBaseURL overrides the API base URL (used in tests)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// WhoAmI resolves the identity behind an access token
func (c *Client) WhoAmI(ctx context.Context, accessToken string) (*Identity, error) {
	body, err := c.get(ctx, "/v0/meta/whoami", accessToken)
	if err != nil {
		return nil, err
	}

	var profile map[string]interface{}
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse whoami response: %w", err)
	}

	identity := &Identity{Profile: profile}
	if id, ok := profile["id"].(string); ok {
		identity.ID = id
	}
	if email, ok := profile["email"].(string); ok {
		identity.Email = email
	}
	if identity.ID == "" {
		return nil, fmt.Errorf("whoami response missing user id")
	}
	return identity, nil
}

// TableFields fetches the live field catalog of a table, keeping only the
// field types the submission flow supports. Unsupported fields are dropped
// silently; a question referencing one surfaces downstream as "field not
// found".
func (c *Client) TableFields(ctx context.Context, baseID, tableID, accessToken string) ([]Field, error) {
	body, err := c.get(ctx, fmt.Sprintf("/v0/meta/bases/%s/tables", baseID), accessToken)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Tables []struct {
			ID     string  `json:"id"`
			Fields []Field `json:"fields"`
		} `json:"tables"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse tables response: %w", err)
	}

	for _, table := range payload.Tables {
		if table.ID != tableID {
			continue
		}
		supported := make([]Field, 0, len(table.Fields))
		for _, f := range table.Fields {
			if models.SupportedQuestionType(f.Type) {
				supported = append(supported, f)
			}
		}
		return supported, nil
	}

	return nil, ErrTableNotFound
}

// CreateRecord writes one record into the table and returns the remote
// record ID. fields is keyed by Airtable field ID.
func (c *Client) CreateRecord(ctx context.Context, baseID, tableID, accessToken string, fields map[string]interface{}) (string, error) {
	reqBody := map[string]interface{}{
		"fields": fields,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v0/%s/%s", c.baseURL, baseID, tableID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var record struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &record); err != nil {
		return "", fmt.Errorf("failed to parse record response: %w", err)
	}
	if record.ID == "" {
		return "", fmt.Errorf("record response missing id")
	}
	return record.ID, nil
}

func (c *Client) get(ctx context.Context, path, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
