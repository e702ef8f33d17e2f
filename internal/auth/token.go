package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// parseClaims parses the JWT without validating the signature; signature
// validation happens in the OIDC middleware, these helpers only read claims
// for logging and routing decisions.
func parseClaims(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, errors.New("empty token")
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ExtractUserIDFromJWT extracts the 'sub' claim which contains the user ID
func ExtractUserIDFromJWT(tokenString string) (string, error) {
	claims, err := parseClaims(tokenString)
	if err != nil {
		return "", err
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("subject claim not found in token")
	}

	return sub, nil
}

// ExtractRoleFromJWT extracts the 'role' claim; absent means customer.
func ExtractRoleFromJWT(tokenString string) (string, error) {
	claims, err := parseClaims(tokenString)
	if err != nil {
		return "", err
	}

	if role, ok := claims["role"].(string); ok && role != "" {
		return role, nil
	}
	return "customer", nil
}
