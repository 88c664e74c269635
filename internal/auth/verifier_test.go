package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPVerifier_Verify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer valid-token":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id": "user-42", "email": "agent@example.com"}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	v := NewHTTPVerifier(server.URL, logrus.New())

	t.Run("valid token", func(t *testing.T) {
		user, err := v.Verify(context.Background(), "valid-token")
		require.NoError(t, err)
		assert.Equal(t, "user-42", user.ID)
		assert.Equal(t, "agent@example.com", user.Email)
	})

	t.Run("invalid token", func(t *testing.T) {
		_, err := v.Verify(context.Background(), "wrong-token")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := v.Verify(context.Background(), "")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestHTTPVerifier_EmptyUserID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "", "email": ""}`)
	}))
	defer server.Close()

	v := NewHTTPVerifier(server.URL, logrus.New())
	_, err := v.Verify(context.Background(), "some-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestHTTPVerifier_ServiceDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	v := NewHTTPVerifier(server.URL, logrus.New())
	_, err := v.Verify(context.Background(), "some-token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}
