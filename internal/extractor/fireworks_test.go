package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docex/internal/config"
	"docex/internal/logger"
)

func newTestClient(url string, timeout time.Duration) *FireworksClient {
	return NewFireworksClient(config.FireworksConfig{
		APIKey:      "test-key",
		Model:       "test-model",
		BaseURL:     url + "/",
		Timeout:     timeout,
		MaxTokens:   2048,
		Temperature: 0.1,
	}, logger.Discard())
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	})
	return string(b)
}

func TestFireworksClient_Extract(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion("```json\n{\"document_type\":\"passport\",\"full_name\":\"Jane Doe\"}\n```")))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, time.Second)
	res, err := c.Extract(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "id.png")
	require.NoError(t, err)

	assert.Equal(t, "passport", *res.DocumentType)
	assert.Equal(t, "Jane Doe", *res.Fields["full_name"])
	assert.Contains(t, res.RawResponse, "```json")

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 2048, got.MaxTokens)
	assert.Equal(t, 40, got.TopK)
	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Content, 2)
	assert.Equal(t, extractionPrompt, got.Messages[0].Content[0].Text)
	assert.True(t, strings.HasPrefix(got.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,"))
}

func TestFireworksClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind Kind
		wantMsg  string
	}{
		{
			name: "non-success status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"bad key"}`))
			},
			wantKind: KindStatus,
			wantMsg:  "status 401",
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[]}`))
			},
			wantKind: KindResponse,
			wantMsg:  "no message content",
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			wantKind: KindResponse,
			wantMsg:  "decode response",
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			},
			wantKind: KindRequest,
			wantMsg:  "extraction request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := newTestClient(srv.URL, 50*time.Millisecond)
			res, err := c.Extract(context.Background(), []byte("img"), "a.jpg")
			require.Error(t, err)
			assert.Nil(t, res)

			var xe *Error
			require.True(t, errors.As(err, &xe))
			assert.Equal(t, tt.wantKind, xe.Kind)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
