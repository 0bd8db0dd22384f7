package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignExcludesKeyAndFile(t *testing.T) {
	c := New("demo", "key", "secret", "")
	got := c.sign(map[string]string{
		"timestamp": "100",
		"public_id": "student_artworks/1_a",
		"api_key":   "key",
		"file":      "x",
	})
	want := fmt.Sprintf("%x", sha1.Sum([]byte("public_id=student_artworks/1_a&timestamp=100secret")))
	assert.Equal(t, want, got)
}

func TestUploadSendsSignedForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/demo/image/upload", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "student_artworks/1_cat", r.FormValue("public_id"))
		assert.Equal(t, "artwink", r.FormValue("folder"))
		assert.NotEmpty(t, r.FormValue("signature"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "cat.png", hdr.Filename)
		assert.Equal(t, "pixels", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"public_id":"artwink/student_artworks/1_cat","secure_url":"https://res.example/cat.png"}`))
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "artwink")
	c.Endpoint = srv.URL
	c.now = func() time.Time { return time.Unix(100, 0) }

	url, err := c.Upload(context.Background(), "student_artworks/1_cat.png", []byte("pixels"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://res.example/cat.png", url)
}

func TestUploadReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid image file"}}`))
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "")
	c.Endpoint = srv.URL
	_, err := c.Upload(context.Background(), "student_artworks/1_x.png", []byte("x"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid image file")
}
