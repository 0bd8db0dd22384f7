package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Client uploads artwork images to Cloudinary using their REST API.
type Client struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	HTTP      *http.Client
	// Endpoint overrides the API base, used by tests.
	Endpoint string
	now      func() time.Time
}

// New creates a Cloudinary client.
func New(cloudName, apiKey, apiSecret, folder string) *Client {
	return &Client{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		Endpoint:  "https://api.cloudinary.com",
		now:       time.Now,
	}
}

// UploadResult holds the response from Cloudinary after a successful upload.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int    `json:"bytes"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload stores data under the object path (extension dropped, Cloudinary
// appends the detected format) and returns the secure URL.
func (c *Client) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	res, err := c.UploadBytes(ctx, data, objectPath)
	if err != nil {
		return "", err
	}
	return res.SecureURL, nil
}

// UploadBytes uploads raw image bytes to Cloudinary.
func (c *Client) UploadBytes(ctx context.Context, data []byte, objectPath string) (*UploadResult, error) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	params := map[string]string{
		"timestamp": strconv.FormatInt(now().Unix(), 10),
		"api_key":   c.APIKey,
		"public_id": strings.TrimSuffix(objectPath, path.Ext(objectPath)),
	}
	if c.Folder != "" {
		params["folder"] = c.Folder
	}
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range params {
		_ = w.WriteField(k, v)
	}

	part, err := w.CreateFormFile("file", path.Base(objectPath))
	if err != nil {
		return nil, fmt.Errorf("cloudinary: create form file failed: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("cloudinary: write file failed: %w", err)
	}
	w.Close()

	url := fmt.Sprintf("%s/v1_1/%s/image/upload", c.Endpoint, c.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("cloudinary: upload failed (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("cloudinary: upload failed (%d): %s", resp.StatusCode, string(body))
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("cloudinary: decode response failed: %w", err)
	}
	return &result, nil
}

// sign computes the API signature: sorted key=value pairs joined by & plus
// the secret. api_key, file and resource_type are not signed.
func (c *Client) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true, "resource_type": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	payload := strings.Join(pairs, "&") + c.APISecret
	h := sha1.New()
	h.Write([]byte(payload))
	return fmt.Sprintf("%x", h.Sum(nil))
}
