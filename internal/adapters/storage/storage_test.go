package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamworkery/kakao-order/pkg/config"
)

func TestUpload(t *testing.T) {
	var path, auth, upsert, contentType string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		auth = r.Header.Get("Authorization")
		upsert = r.Header.Get("x-upsert")
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(config.StorageConfig{URL: srv.URL + "/", ServiceKey: "service"}, srv.Client())
	err := c.Upload(context.Background(), "menu-images", "s-1/버거.png", "image/png", []byte("png"))
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/menu-images/s-1/%EB%B2%84%EA%B1%B0.png", path)
	assert.Equal(t, "Bearer service", auth)
	assert.Equal(t, "true", upsert)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, []byte("png"), body)
}

func TestUploadReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(config.StorageConfig{URL: srv.URL}, srv.Client())
	err := c.Upload(context.Background(), "missing", "a.png", "image/png", []byte("png"))
	assert.ErrorContains(t, err, "bucket not found")
}

func TestPublicURL(t *testing.T) {
	c := NewClient(config.StorageConfig{URL: "https://project.example"}, nil)
	assert.Equal(t,
		"https://project.example/storage/v1/object/public/store-images/s-1/logo.png",
		c.PublicURL("store-images", "s-1/logo.png"))
}
