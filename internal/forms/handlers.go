package forms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/formlet/formlet-api/internal/airtable"
	"github.com/formlet/formlet-api/internal/httputil"
	"github.com/formlet/formlet-api/internal/models"
	"github.com/formlet/formlet-api/internal/repository"
)

const previewFieldCount = 3

// FormStore persists form definitions
type FormStore interface {
	Create(ctx context.Context, form *models.Form) error
	GetByID(ctx context.Context, id string) (*models.Form, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Form, error)
	ReplaceQuestions(ctx context.Context, id string, questions models.Questions) error
}

// ResponseLister reads submission history
type ResponseLister interface {
	ListByForm(ctx context.Context, formID string) ([]models.Response, error)
}

// UserGetter resolves the form owner whose Airtable token backs the
// submission flow
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// FieldCatalog fetches the live field list of a remote table
type FieldCatalog interface {
	TableFields(ctx context.Context, baseID, tableID, accessToken string) ([]airtable.Field, error)
}

// FileSaver stores uploaded files and returns their stored names
type FileSaver interface {
	Save(fh *multipart.FileHeader) (string, error)
}

type Handler struct {
	forms         FormStore
	responses     ResponseLister
	users         UserGetter
	catalog       FieldCatalog
	sync          *Synchronizer
	files         FileSaver
	publicBaseURL string
}

func NewHandler(forms FormStore, responses ResponseLister, users UserGetter, catalog FieldCatalog, sync *Synchronizer, files FileSaver, publicBaseURL string) *Handler {
	return &Handler{
		forms:         forms,
		responses:     responses,
		users:         users,
		catalog:       catalog,
		sync:          sync,
		files:         files,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Register mounts the form routes on the given router group
func (h *Handler) Register(r *gin.RouterGroup) {
	r.POST("", h.Create)
	r.GET("", h.List)
	r.GET("/:formId", h.Get)
	r.PUT("/:formId", h.UpdateQuestions)
	r.POST("/:formId/submit", h.Submit)
	r.GET("/:formId/responses", h.ListResponses)
}

type createFormRequest struct {
	BaseID  string `json:"baseId"`
	TableID string `json:"tableId"`
}

// Create creates an empty form bound to a base/table pair
func (h *Handler) Create(c *gin.Context) {
	user := httputil.CurrentUser(c)

	var req createFormRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BaseID == "" || req.TableID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "baseId and tableId are required"})
		return
	}

	form := &models.Form{
		ID:              uuid.NewString(),
		OwnerID:         user.ID,
		AirtableBaseID:  req.BaseID,
		AirtableTableID: req.TableID,
		Questions:       models.Questions{},
	}
	if err := h.forms.Create(c.Request.Context(), form); err != nil {
		log.Printf("Failed to create form for user %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create form"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"formId": form.ID})
}

// List returns the caller's forms
func (h *Handler) List(c *gin.Context) {
	user := httputil.CurrentUser(c)

	forms, err := h.forms.ListByOwner(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("Failed to list forms for user %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not get all forms"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"forms": forms})
}

// Get returns a single form. Readable by any authenticated identity:
// form definitions are shareable by ID, only mutation is owner-scoped.
func (h *Handler) Get(c *gin.Context) {
	form, err := h.forms.GetByID(c.Request.Context(), c.Param("formId"))
	if err != nil {
		if errors.Is(err, repository.ErrFormNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Form not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not get form"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"form": form})
}

type updateQuestionsRequest struct {
	Questions []models.Question `json:"questions"`
}

// UpdateQuestions replaces the form's question list wholesale. Non-owners
// get the same answer as a missing form so existence is never leaked.
func (h *Handler) UpdateQuestions(c *gin.Context) {
	user := httputil.CurrentUser(c)

	var req updateQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Questions == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "questions must be an array"})
		return
	}

	form, err := h.forms.GetByID(c.Request.Context(), c.Param("formId"))
	if err != nil && !errors.Is(err, repository.ErrFormNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save form"})
		return
	}
	if err != nil || form.OwnerID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Form not found or access denied"})
		return
	}

	if err := models.ValidateQuestions(req.Questions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	form.Questions = models.Questions(req.Questions)
	if err := h.forms.ReplaceQuestions(c.Request.Context(), form.ID, form.Questions); err != nil {
		log.Printf("Error updating form %s: %v", form.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save form"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Form updated successfully", "form": form})
}

// Submit validates a multipart submission against the live field catalog
// and syncs the accepted answers into Airtable.
func (h *Handler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	form, err := h.forms.GetByID(ctx, c.Param("formId"))
	if err != nil {
		if errors.Is(err, repository.ErrFormNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Form not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not get form"})
		return
	}

	// The remote calls run on the form owner's token, not the caller's
	owner, err := h.users.GetByID(ctx, form.OwnerID)
	if err != nil {
		log.Printf("Failed to resolve owner of form %s: %v", form.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not resolve form owner"})
		return
	}

	multipartForm, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}

	files, err := h.storeUploads(multipartForm)
	if err != nil {
		log.Printf("Failed to store uploads for form %s: %v", form.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not store uploaded files"})
		return
	}

	fields, err := h.catalog.TableFields(ctx, form.AirtableBaseID, form.AirtableTableID, owner.AccessToken)
	if err != nil {
		h.remoteError(c, form.ID, err)
		return
	}

	answers, verr := Validate(form.Questions, fields, multipartForm.Value, files)
	if verr != nil {
		status := http.StatusBadRequest
		if verr.Kind == KindFieldNotFound {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": verr.Message})
		return
	}

	response, err := h.sync.Sync(ctx, form, answers, owner.AccessToken)
	if err != nil {
		h.remoteError(c, form.ID, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "responseId": response.ID})
}

// ListResponses returns the form's submission history, owner-only. Each
// entry carries a short preview built from the form's first questions.
func (h *Handler) ListResponses(c *gin.Context) {
	user := httputil.CurrentUser(c)

	form, err := h.forms.GetByID(c.Request.Context(), c.Param("formId"))
	if err != nil && !errors.Is(err, repository.ErrFormNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not get form"})
		return
	}
	if err != nil || form.OwnerID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Form not found or access denied"})
		return
	}

	responses, err := h.responses.ListByForm(c.Request.Context(), form.ID)
	if err != nil {
		log.Printf("Failed to list responses for form %s: %v", form.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not get responses"})
		return
	}

	out := make([]gin.H, 0, len(responses))
	for _, r := range responses {
		out = append(out, gin.H{
			"id":               r.ID,
			"formId":           r.FormID,
			"airtableRecordId": r.AirtableRecordID,
			"answers":          r.Answers,
			"createdAt":        r.CreatedAt,
			"preview":          Preview(form.Questions, r.Answers),
		})
	}

	c.JSON(http.StatusOK, gin.H{"responses": out})
}

// storeUploads saves every uploaded file and groups the resulting
// attachments by their multipart field name (the questionKey).
func (h *Handler) storeUploads(multipartForm *multipart.Form) (map[string][]Attachment, error) {
	files := make(map[string][]Attachment)
	for key, headers := range multipartForm.File {
		for _, fh := range headers {
			storedName, err := h.files.Save(fh)
			if err != nil {
				return nil, err
			}
			files[key] = append(files[key], Attachment{
				URL:      fmt.Sprintf("%s/uploads/%s", h.publicBaseURL, storedName),
				Filename: fh.Filename,
			})
		}
	}
	return files, nil
}

func (h *Handler) remoteError(c *gin.Context, formID string, err error) {
	if errors.Is(err, airtable.ErrTableNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Table not found in this base"})
		return
	}
	var apiErr *airtable.APIError
	if errors.As(err, &apiErr) {
		log.Printf("Airtable request failed for form %s (status %d): %s", formID, apiErr.StatusCode, apiErr.Body)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Airtable request failed", "details": apiErr.Body})
		return
	}
	log.Printf("Submission failed for form %s: %v", formID, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Submission failed"})
}
