package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ms-reservations/internal/logger"
)

// M2MConfig identifies the portal's service account at the OIDC issuer.
type M2MConfig struct {
	IssuerURL    string
	Realm        string
	ClientID     string
	ClientSecret string
}

type m2mTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// GetM2MToken retrieves a machine-to-machine token via the client
// credentials grant, consulting the Redis cache first.
func GetM2MToken(ctx context.Context, cfg M2MConfig, client *http.Client, cache *RedisTokenCache, log *logger.Logger) (string, error) {
	if cache != nil {
		if cached, err := cache.Get(ctx); err == nil && cached.IsValid() {
			return cached.Token, nil
		}
	}

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", strings.TrimRight(cfg.IssuerURL, "/"), cfg.Realm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", cfg.ClientID)
	data.Set("client_secret", cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		log.Error("AUTH", fmt.Sprintf("M2M token request failed: %v", err))
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		log.Error("AUTH", fmt.Sprintf("M2M token response %s: %s", resp.Status, string(bodyBytes)))
		return "", fmt.Errorf("failed to get token, status: %s", resp.Status)
	}

	var tokenResp m2mTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}

	if cache != nil {
		expiry := time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
		if err := cache.Set(ctx, TokenCache{Token: tokenResp.AccessToken, ExpiresAt: expiry}); err != nil {
			log.Warn("AUTH", fmt.Sprintf("Failed to cache M2M token: %v", err))
		}
	}

	return tokenResp.AccessToken, nil
}
