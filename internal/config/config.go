package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL          string
	Port                 int
	AirtableClientID     string
	AirtableClientSecret string
	AirtableRedirectURI  string
	FrontendURL          string
	PublicBaseURL        string
	UploadDir            string
	HTTPClientTimeout    int // seconds, applied to all outbound Airtable calls
	ShutdownTimeout      int // seconds
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	clientID := os.Getenv("AIRTABLE_CLIENT_ID")
	clientSecret := os.Getenv("AIRTABLE_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		fmt.Println("Warning: AIRTABLE_CLIENT_ID or AIRTABLE_CLIENT_SECRET not set, OAuth login will not work")
	}

	port := envInt("PORT", 3000)

	publicBaseURL := os.Getenv("PUBLIC_BASE_URL")
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("http://localhost:%d", port)
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:5173"
	}

	return &Config{
		DatabaseURL:          dbURL,
		Port:                 port,
		AirtableClientID:     clientID,
		AirtableClientSecret: clientSecret,
		AirtableRedirectURI:  os.Getenv("AIRTABLE_REDIRECT_URI"),
		FrontendURL:          frontendURL,
		PublicBaseURL:        publicBaseURL,
		UploadDir:            uploadDir,
		HTTPClientTimeout:    envInt("HTTP_CLIENT_TIMEOUT", 30),
		ShutdownTimeout:      envInt("SHUTDOWN_TIMEOUT", 30),
	}, nil
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Printf("Warning: invalid %s=%q, using default %d\n", key, v, def)
		return def
	}
	return n
}
