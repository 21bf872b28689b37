package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourorg/imageforge/internal/domain"
)

func TestHTTPGenerationAdapterClassifiesRateLimitAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	adapter := NewHTTPGenerationAdapter(srv.URL, "key")
	_, _, err := adapter.Generate(context.Background(), "prompt", domain.StyleOutdoor, 100, 100)
	require.Error(t, err)
	require.Equal(t, domain.FailureProviderTransient, adapter.ClassifyError(err))
}

func TestHTTPGenerationAdapterClassifiesAuthFailureAsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	adapter := NewHTTPGenerationAdapter(srv.URL, "bad-key")
	_, _, err := adapter.Generate(context.Background(), "prompt", domain.StyleOutdoor, 100, 100)
	require.Error(t, err)
	require.Equal(t, domain.FailureProviderTerminal, adapter.ClassifyError(err))
}

func TestHTTPGenerationAdapterEmptyBodyIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	adapter := NewHTTPGenerationAdapter(srv.URL, "key")
	_, _, err := adapter.Generate(context.Background(), "prompt", domain.StyleOutdoor, 100, 100)
	require.Error(t, err)
	require.Equal(t, domain.FailureProviderTerminal, adapter.ClassifyError(err))
}

func TestHTTPVisionAdapterParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tags":[{"tag":"chair","confidence":0.8}],"description":"a chair","category":"furniture","confidence":0.8,"colors":[{"hex":"#fff","percentage":0.5,"is_dominant":true}]}`))
	}))
	defer srv.Close()

	adapter := NewHTTPVisionAdapter(srv.URL, "key")
	result, err := adapter.Tag(context.Background(), []byte("jpeg-bytes"), "a prompt")
	require.NoError(t, err)
	require.Equal(t, "a chair", result.Description)
	require.Len(t, result.Tags, 1)
	require.Equal(t, "chair", result.Tags[0].Tag)
	require.Len(t, result.Colors, 1)
	require.True(t, result.Colors[0].IsDominant)
}

func TestHTTPEmbeddingAdapterServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	adapter := NewHTTPEmbeddingAdapter(srv.URL, "key")
	_, err := adapter.Embed(context.Background(), "input")
	require.Error(t, err)
	require.Equal(t, domain.FailureProviderTransient, adapter.ClassifyError(err))
}
