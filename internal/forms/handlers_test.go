package forms

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/formlet/formlet-api/internal/airtable"
	"github.com/formlet/formlet-api/internal/httputil"
	"github.com/formlet/formlet-api/internal/models"
	"github.com/formlet/formlet-api/internal/repository"
)

type mockFormStore struct {
	forms    map[string]*models.Form
	replaced map[string]models.Questions
}

func newMockFormStore(forms ...*models.Form) *mockFormStore {
	m := &mockFormStore{forms: make(map[string]*models.Form), replaced: make(map[string]models.Questions)}
	for _, f := range forms {
		m.forms[f.ID] = f
	}
	return m
}

func (m *mockFormStore) Create(ctx context.Context, form *models.Form) error {
	m.forms[form.ID] = form
	return nil
}

func (m *mockFormStore) GetByID(ctx context.Context, id string) (*models.Form, error) {
	form, ok := m.forms[id]
	if !ok {
		return nil, repository.ErrFormNotFound
	}
	return form, nil
}

func (m *mockFormStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Form, error) {
	var out []models.Form
	for _, f := range m.forms {
		if f.OwnerID == ownerID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *mockFormStore) ReplaceQuestions(ctx context.Context, id string, questions models.Questions) error {
	m.replaced[id] = questions
	return nil
}

type mockResponseLister struct {
	responses []models.Response
}

func (m *mockResponseLister) ListByForm(ctx context.Context, formID string) ([]models.Response, error) {
	return m.responses, nil
}

type mockUserGetter struct {
	users map[string]*models.User
}

func (m *mockUserGetter) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

type mockFieldCatalog struct {
	fields []airtable.Field
	err    error
	calls  int
}

func (m *mockFieldCatalog) TableFields(ctx context.Context, baseID, tableID, accessToken string) ([]airtable.Field, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.fields, nil
}

type mockFileSaver struct{}

func (m *mockFileSaver) Save(fh *multipart.FileHeader) (string, error) {
	return "stored_" + fh.Filename, nil
}

type handlerFixture struct {
	router  *gin.Engine
	forms   *mockFormStore
	records *mockRecordCreator
	catalog *mockFieldCatalog
}

func newFixture(t *testing.T, caller *models.User, forms *mockFormStore, catalog *mockFieldCatalog, users *mockUserGetter, responses *mockResponseLister) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	records := &mockRecordCreator{recordID: "recXYZ"}
	sync := NewSynchronizer(records, &mockResponseCreator{})

	h := NewHandler(forms, responses, users, catalog, sync, &mockFileSaver{}, "http://localhost:3000")

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httputil.ContextUserKey, caller)
	})
	h.Register(r.Group("/forms"))

	return &handlerFixture{router: r, forms: forms, records: records, catalog: catalog}
}

func caller() *models.User {
	return &models.User{ID: "user-1", Email: "alice@example.com", AccessToken: "tok", TokenExpiresAt: time.Now().Add(time.Hour)}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestCreateForm(t *testing.T) {
	fx := newFixture(t, caller(), newMockFormStore(), &mockFieldCatalog{}, &mockUserGetter{}, &mockResponseLister{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/forms", strings.NewReader(`{"baseId":"app123","tableId":"tbl456"}`))
	req.Header.Set("Content-Type", "application/json")
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	formID, _ := body["formId"].(string)
	if formID == "" {
		t.Fatal("expected formId in response")
	}

	created := fx.forms.forms[formID]
	if created == nil {
		t.Fatal("expected form to be persisted")
	}
	if created.OwnerID != "user-1" {
		t.Errorf("expected owner user-1, got %s", created.OwnerID)
	}
	if len(created.Questions) != 0 {
		t.Errorf("expected form to start with no questions, got %d", len(created.Questions))
	}
}

func TestCreateForm_MissingFields(t *testing.T) {
	fx := newFixture(t, caller(), newMockFormStore(), &mockFieldCatalog{}, &mockUserGetter{}, &mockResponseLister{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/forms", strings.NewReader(`{"baseId":"app123"}`))
	req.Header.Set("Content-Type", "application/json")
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUpdateQuestions_NonOwnerSeesNotFound(t *testing.T) {
	someoneElsesForm := &models.Form{ID: "form-1", OwnerID: "user-2", AirtableBaseID: "app123", AirtableTableID: "tbl456"}
	fx := newFixture(t, caller(), newMockFormStore(someoneElsesForm), &mockFieldCatalog{}, &mockUserGetter{}, &mockResponseLister{})

	payload := `{"questions":[{"questionKey":"name","airtableFieldId":"fldA","label":"Name","type":"singleLineText"}]}`

	// Existing form owned by someone else
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/forms/form-1", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %d", w.Code)
	}
	nonOwnerBody := w.Body.String()

	// Missing form must be indistinguishable
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPut, "/forms/does-not-exist", strings.NewReader(payload))
	req2.Header.Set("Content-Type", "application/json")
	fx.router.ServeHTTP(w2, req2)

	if w2.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing form, got %d", w2.Code)
	}
	if w2.Body.String() != nonOwnerBody {
		t.Errorf("expected identical bodies for non-owner and missing form, got %q vs %q", nonOwnerBody, w2.Body.String())
	}
	if len(fx.forms.replaced) != 0 {
		t.Error("expected no question replacement")
	}
}

func TestUpdateQuestions_Owner(t *testing.T) {
	form := &models.Form{ID: "form-1", OwnerID: "user-1", AirtableBaseID: "app123", AirtableTableID: "tbl456"}
	fx := newFixture(t, caller(), newMockFormStore(form), &mockFieldCatalog{}, &mockUserGetter{}, &mockResponseLister{})

	payload := `{"questions":[{"questionKey":"name","airtableFieldId":"fldA","label":"Name","type":"singleLineText","required":true}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/forms/form-1", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	replaced := fx.forms.replaced["form-1"]
	if len(replaced) != 1 || replaced[0].QuestionKey != "name" {
		t.Errorf("expected questions to be replaced wholesale, got %v", replaced)
	}
}

func TestUpdateQuestions_UnsupportedType(t *testing.T) {
	form := &models.Form{ID: "form-1", OwnerID: "user-1"}
	fx := newFixture(t, caller(), newMockFormStore(form), &mockFieldCatalog{}, &mockUserGetter{}, &mockResponseLister{})

	payload := `{"questions":[{"questionKey":"n","airtableFieldId":"fldA","label":"N","type":"number"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/forms/form-1", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "Unsupported field type: number" {
		t.Errorf("unexpected error body %v", body)
	}
}

func TestGetForm_ReadableByAnyAuthenticatedUser(t *testing.T) {
	someoneElsesForm := &models.Form{ID: "form-1", OwnerID: "user-2"}
	fx := newFixture(t, caller(), newMockFormStore(someoneElsesForm), &mockFieldCatalog{}, &mockUserGetter{}, &mockResponseLister{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/forms/form-1", nil)
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected single-form read to skip the ownership check, got %d", w.Code)
	}
}

func submissionForm() *models.Form {
	return &models.Form{
		ID:              "form-1",
		OwnerID:         "owner-1",
		AirtableBaseID:  "app123",
		AirtableTableID: "tbl456",
		Questions: models.Questions{
			{QuestionKey: "name", AirtableFieldID: "fldA", Label: "Name", Type: models.QuestionTypeSingleLineText, Required: true},
		},
	}
}

func submissionFixture(t *testing.T, form *models.Form, catalog *mockFieldCatalog) *handlerFixture {
	t.Helper()
	owner := &models.User{ID: "owner-1", AccessToken: "owner-tok", TokenExpiresAt: time.Now().Add(time.Hour)}
	users := &mockUserGetter{users: map[string]*models.User{"owner-1": owner}}
	return newFixture(t, caller(), newMockFormStore(form), catalog, users, &mockResponseLister{})
}

func multipartRequest(t *testing.T, path string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestSubmit_Success(t *testing.T) {
	catalog := &mockFieldCatalog{fields: []airtable.Field{{ID: "fldA", Type: models.QuestionTypeSingleLineText}}}
	fx := submissionFixture(t, submissionForm(), catalog)

	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, multipartRequest(t, "/forms/form-1/submit", map[string]string{"name": "Alice"}))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["success"] != true {
		t.Errorf("expected success=true, got %v", body)
	}
	if body["responseId"] == "" || body["responseId"] == nil {
		t.Error("expected responseId in response")
	}

	if fx.records.calls != 1 {
		t.Errorf("expected exactly one remote create, got %d", fx.records.calls)
	}
	if fx.records.gotFields["fldA"] != "Alice" {
		t.Errorf("expected synchronizer to send {fldA: Alice}, got %v", fx.records.gotFields)
	}
}

func TestSubmit_RequiredMissingMakesNoRemoteWrite(t *testing.T) {
	catalog := &mockFieldCatalog{fields: []airtable.Field{{ID: "fldA", Type: models.QuestionTypeSingleLineText}}}
	fx := submissionFixture(t, submissionForm(), catalog)

	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, multipartRequest(t, "/forms/form-1/submit", map[string]string{}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["error"] != "Required field missing: Name" {
		t.Errorf("unexpected error body %v", body)
	}
	if fx.records.calls != 0 {
		t.Errorf("expected no record creation on validation failure, got %d calls", fx.records.calls)
	}
}

func TestSubmit_FieldGoneRemotelyIsServerError(t *testing.T) {
	// Catalog no longer carries the configured field
	catalog := &mockFieldCatalog{fields: []airtable.Field{{ID: "fldOther", Type: models.QuestionTypeSingleLineText}}}
	fx := submissionFixture(t, submissionForm(), catalog)

	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, multipartRequest(t, "/forms/form-1/submit", map[string]string{"name": "Alice"}))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for a server misconfiguration, got %d", w.Code)
	}
	if fx.records.calls != 0 {
		t.Errorf("expected no remote write, got %d calls", fx.records.calls)
	}
}

func TestSubmit_TableNotFound(t *testing.T) {
	catalog := &mockFieldCatalog{err: airtable.ErrTableNotFound}
	fx := submissionFixture(t, submissionForm(), catalog)

	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, multipartRequest(t, "/forms/form-1/submit", map[string]string{"name": "Alice"}))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing table, got %d", w.Code)
	}
}

func TestSubmit_RemoteCatalogUnavailable(t *testing.T) {
	catalog := &mockFieldCatalog{err: &airtable.APIError{StatusCode: 503, Body: "down"}}
	fx := submissionFixture(t, submissionForm(), catalog)

	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, multipartRequest(t, "/forms/form-1/submit", map[string]string{"name": "Alice"}))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when the catalog fetch fails, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["details"] != "down" {
		t.Errorf("expected provider payload in details, got %v", body)
	}
}

func TestListResponses_OwnerOnly(t *testing.T) {
	someoneElsesForm := &models.Form{ID: "form-1", OwnerID: "user-2"}
	fx := newFixture(t, caller(), newMockFormStore(someoneElsesForm), &mockFieldCatalog{}, &mockUserGetter{}, &mockResponseLister{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/forms/form-1/responses", nil)
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for non-owner, got %d", w.Code)
	}
}

func TestListResponses_Preview(t *testing.T) {
	form := &models.Form{
		ID:      "form-1",
		OwnerID: "user-1",
		Questions: models.Questions{
			{QuestionKey: "name", Label: "Name", Type: models.QuestionTypeSingleLineText},
			{QuestionKey: "color", Label: "Color", Type: models.QuestionTypeSingleSelect},
			{QuestionKey: "tags", Label: "Tags", Type: models.QuestionTypeMultipleSelects},
			{QuestionKey: "note", Label: "Note", Type: models.QuestionTypeMultilineText},
		},
	}
	responses := &mockResponseLister{responses: []models.Response{{
		ID:               "resp-1",
		FormID:           "form-1",
		AirtableRecordID: "recXYZ",
		Answers: models.JSONB{
			"name":  "Alice",
			"color": "Blue",
			"tags":  []interface{}{"go", "web"},
			"note":  "ignored, only three fields shown",
		},
	}}}
	fx := newFixture(t, caller(), newMockFormStore(form), &mockFieldCatalog{}, &mockUserGetter{}, responses)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/forms/form-1/responses", nil)
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Responses []map[string]interface{} `json:"responses"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(body.Responses) != 1 {
		t.Fatalf("expected one response, got %d", len(body.Responses))
	}
	preview, _ := body.Responses[0]["preview"].(string)
	if preview != "Name: Alice, Color: Blue, Tags: go, web" {
		t.Errorf("unexpected preview %q", preview)
	}
}
