package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/formlet/formlet-api/internal/airtable"
	"github.com/formlet/formlet-api/internal/config"
	"github.com/formlet/formlet-api/internal/models"
)

// Scopes requested from Airtable for the form-builder flows
const Scopes = "data.records:read data.records:write schema.bases:read schema.bases:write webhook:manage user.email:read"

// Endpoint is the Airtable OAuth2 endpoint pair. The token endpoint
// expects client credentials via Basic auth.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://airtable.com/oauth2/v1/authorize",
	TokenURL:  "https://airtable.com/oauth2/v1/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// IdentityClient resolves the identity behind an access token
type IdentityClient interface {
	WhoAmI(ctx context.Context, accessToken string) (*airtable.Identity, error)
}

// UserStore persists OAuth identities
type UserStore interface {
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type Handler struct {
	oauth       *oauth2.Config
	states      *StateStore
	identity    IdentityClient
	users       UserStore
	frontendURL string
}

func NewHandler(cfg *config.Config, states *StateStore, identity IdentityClient, users UserStore) *Handler {
	return &Handler{
		oauth: &oauth2.Config{
			ClientID:     cfg.AirtableClientID,
			ClientSecret: cfg.AirtableClientSecret,
			RedirectURL:  cfg.AirtableRedirectURI,
			Scopes:       []string{Scopes},
			Endpoint:     Endpoint,
		},
		states:      states,
		identity:    identity,
		users:       users,
		frontendURL: cfg.FrontendURL,
	}
}

// Register mounts the auth routes on the given router group
func (h *Handler) Register(r *gin.RouterGroup) {
	r.GET("/airtable", h.Login)
	r.GET("/airtable/callback", h.Callback)
	r.GET("/verify", h.Verify)
}

// Login starts an OAuth flow: generates a state token and PKCE verifier,
// remembers the pair, and redirects to the Airtable authorize URL.
func (h *Handler) Login(c *gin.Context) {
	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start login"})
		return
	}
	state := hex.EncodeToString(stateBytes)
	verifier := oauth2.GenerateVerifier()

	h.states.Put(state, verifier)

	authURL := h.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the OAuth flow: exchanges the code, resolves the
// identity, upserts the user record, and bounces back to the frontend.
func (h *Handler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		c.String(http.StatusBadRequest, "Invalid OAuth callback")
		return
	}
	verifier, ok := h.states.Take(state)
	if !ok {
		c.String(http.StatusBadRequest, "Invalid OAuth callback")
		return
	}

	token, err := h.oauth.Exchange(c.Request.Context(), code, oauth2.VerifierOption(verifier))
	if err != nil {
		log.Printf("OAuth token exchange failed: %v", err)
		c.String(http.StatusInternalServerError, "Login failed")
		return
	}

	identity, err := h.identity.WhoAmI(c.Request.Context(), token.AccessToken)
	if err != nil {
		log.Printf("OAuth whoami failed: %v", err)
		c.String(http.StatusInternalServerError, "Login failed")
		return
	}

	now := time.Now()
	user, err := h.users.Upsert(c.Request.Context(), &models.User{
		ID:             uuid.NewString(),
		AirtableUserID: identity.ID,
		Email:          identity.Email,
		Profile:        identity.Profile,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: token.Expiry,
		LoginTimestamp: now,
		LastSeenAt:     now,
	})
	if err != nil {
		log.Printf("Failed to upsert user %s: %v", identity.ID, err)
		c.String(http.StatusInternalServerError, "Login failed")
		return
	}

	redirect := fmt.Sprintf("%s/auth/signin?success=true&userId=%s&email=%s",
		h.frontendURL, url.QueryEscape(user.ID), url.QueryEscape(user.Email))
	c.Redirect(http.StatusFound, redirect)
}

// Verify is a session liveness check for the frontend
func (h *Handler) Verify(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authorized"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authorized"})
		return
	}
	if user.TokenExpired(time.Now()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"userId": user.ID, "email": user.Email})
}
