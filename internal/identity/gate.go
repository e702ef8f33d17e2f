package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
)

// ProfileCache is the portal-side cache for fetched profiles. Lookups and
// writes are best effort; the identity service stays the source of truth.
type ProfileCache interface {
	LoadProfile(ctx context.Context, name string) (*models.UserProfile, error)
	CacheProfile(ctx context.Context, name string, profile *models.UserProfile) error
	ClearProfile(ctx context.Context, name string) error
}

// Gate fronts the identity service. Payment is blocked until the customer
// profile carries the required verification artifacts.
type Gate struct {
	baseURL          string
	client           *http.Client
	cache            ProfileCache
	requireFacePhoto bool
	requireCitizenID bool
	logger           *logger.Logger
}

func NewGate(baseURL string, client *http.Client, cache ProfileCache, requireFacePhoto, requireCitizenID bool) *Gate {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gate{
		baseURL:          strings.TrimRight(baseURL, "/"),
		client:           client,
		cache:            cache,
		requireFacePhoto: requireFacePhoto,
		requireCitizenID: requireCitizenID,
		logger:           logger.NewLogger(),
	}
}

// GetUserByID fetches the profile, consulting the cache first.
func (g *Gate) GetUserByID(ctx context.Context, userID string, token string) (*models.UserProfile, error) {
	if g.cache != nil {
		if profile, err := g.cache.LoadProfile(ctx, userID); err == nil && profile != nil {
			return profile, nil
		}
	}

	url := fmt.Sprintf("%s/api/v1/users/%s", g.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("IDENTITY", fmt.Sprintf("Identity service error: %v", err))
		return nil, fmt.Errorf("identity service error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var profile models.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode user profile: %w", err)
	}

	if g.cache != nil {
		if err := g.cache.CacheProfile(ctx, userID, &profile); err != nil {
			g.logger.Debug("IDENTITY", fmt.Sprintf("Profile cache write failed: %v", err))
		}
	}
	return &profile, nil
}

// HasRequiredArtifacts reports whether the profile clears the payment gate.
func (g *Gate) HasRequiredArtifacts(profile *models.UserProfile) bool {
	if profile == nil {
		return false
	}
	if g.requireFacePhoto && !profile.HasFacePhoto() {
		return false
	}
	if g.requireCitizenID && !profile.HasCitizenIdentification() {
		return false
	}
	return true
}

// MissingArtifacts names what still blocks the gate, for the upload prompt.
func (g *Gate) MissingArtifacts(profile *models.UserProfile) []string {
	var missing []string
	if g.requireFacePhoto && !profile.HasFacePhoto() {
		missing = append(missing, "face photo")
	}
	if g.requireCitizenID && !profile.HasCitizenIdentification() {
		missing = append(missing, "citizen identification")
	}
	return missing
}

// UploadPhotoFace submits the face photo and invalidates the cached profile.
func (g *Gate) UploadPhotoFace(ctx context.Context, userID, token string, photo io.Reader, filename string) error {
	return g.upload(ctx, userID, token, "photo-face", "photo", photo, filename)
}

// UploadCitizenIdentification submits the identification document.
func (g *Gate) UploadCitizenIdentification(ctx context.Context, userID, token string, document io.Reader, filename string) error {
	return g.upload(ctx, userID, token, "citizen-identification", "document", document, filename)
}

func (g *Gate) upload(ctx context.Context, userID, token, endpoint, field string, content io.Reader, filename string) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("failed to read upload content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload form: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/users/%s/%s", g.baseURL, userID, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("IDENTITY", fmt.Sprintf("Upload failed: %v", err))
		return fmt.Errorf("identity service error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	// Drop the cached profile so the gate re-reads the fresh artifact flags.
	if g.cache != nil {
		if err := g.cache.ClearProfile(ctx, userID); err != nil {
			g.logger.Debug("IDENTITY", fmt.Sprintf("Profile cache invalidation failed: %v", err))
		}
	}
	g.logger.Info("IDENTITY", fmt.Sprintf("Uploaded %s for user %s", endpoint, userID))
	return nil
}
