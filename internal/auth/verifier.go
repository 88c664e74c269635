package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrUnauthenticated = errors.New("missing or invalid credentials")

// User is the authenticated caller as reported by the session service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verifier resolves a bearer token to a user. Session issuance lives in an
// external service; this package only asks it who a token belongs to.
type Verifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// HTTPVerifier calls the auth service's user endpoint with the caller's
// bearer token.
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
	logger   *logrus.Logger
}

func NewHTTPVerifier(endpoint string, logger *logrus.Logger) *HTTPVerifier {
	return &HTTPVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	req, err := http.NewRequestWithContext(ctx, "GET", v.endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.WithError(err).Error("Auth service request failed")
		return nil, fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to parse auth response: %w", err)
	}
	if user.ID == "" {
		return nil, ErrUnauthenticated
	}

	return &user, nil
}
