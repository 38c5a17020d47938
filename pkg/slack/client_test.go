package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostSendsTextPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(time.Second)
	require.NoError(t, client.Post(context.Background(), srv.URL, "*acme*\nROAS: 3.5\nMC: 1200"))
	assert.Equal(t, "*acme*\nROAS: 3.5\nMC: 1200", got.Text)
}

func TestPostNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(time.Second)
	err := client.Post(context.Background(), srv.URL, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "invalid_token")
}

func TestPostEmptyWebhook(t *testing.T) {
	client := NewClient(time.Second)
	assert.Error(t, client.Post(context.Background(), "", "hello"))
}

func TestPostContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	client := NewClient(time.Second)
	assert.Error(t, client.Post(ctx, srv.URL, "hello"))
}

func TestSummaryMessage(t *testing.T) {
	assert.Equal(t, "*acme*\nROAS: 3.5\nMC: 1 200,00", SummaryMessage("acme", "3.5", "1 200,00"))
	assert.Equal(t, "*x*\nROAS: N/A\nMC: N/A", SummaryMessage("x", "N/A", "N/A"))
}
