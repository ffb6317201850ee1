package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cloudinary uploads avatar images to the Cloudinary REST API using signed
// requests. Avatars are stored under avatars/<identifier> and normalized to
// a 400x400 fill crop.
type Cloudinary struct {
	apiKey     string
	apiSecret  string
	uploadURL  string
	httpClient *http.Client
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewCloudinary(rawURL string) (*Cloudinary, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse cloudinary url: %w", err)
	}

	if parsed.Scheme != "cloudinary" {
		return nil, fmt.Errorf("invalid cloudinary scheme")
	}

	apiKey := parsed.User.Username()
	apiSecret, ok := parsed.User.Password()
	if !ok {
		return nil, fmt.Errorf("missing cloudinary api secret")
	}
	cloudName := parsed.Hostname()
	if apiKey == "" || apiSecret == "" || cloudName == "" {
		return nil, fmt.Errorf("invalid cloudinary credentials")
	}

	return &Cloudinary{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		uploadURL: fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", cloudName),
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}, nil
}

// UploadAvatar pushes the image to Cloudinary and returns the secure URL.
// identifier keys the stored asset, so re-uploading replaces the old avatar.
func (c *Cloudinary) UploadAvatar(ctx context.Context, file io.Reader, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", fmt.Errorf("empty avatar identifier")
	}

	params := map[string]string{
		"public_id":      "avatars/" + identifier,
		"folder":         "avatars",
		"overwrite":      "true",
		"transformation": "w_400,h_400,c_fill",
		"timestamp":      strconv.FormatInt(time.Now().Unix(), 10),
	}
	signature := c.sign(params)

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		for key, value := range params {
			if err := writer.WriteField(key, value); err != nil {
				_ = pw.CloseWithError(fmt.Errorf("write %s field: %w", key, err))
				return
			}
		}
		if err := writer.WriteField("api_key", c.apiKey); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("write api_key field: %w", err))
			return
		}
		if err := writer.WriteField("signature", signature); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("write signature field: %w", err))
			return
		}
		part, err := writer.CreateFormFile("file", identifier)
		if err != nil {
			_ = pw.CloseWithError(fmt.Errorf("create file part: %w", err))
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("copy file part: %w", err))
			return
		}
		if err := writer.Close(); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("close multipart writer: %w", err))
			return
		}
		_ = pw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, pr)
	if err != nil {
		return "", fmt.Errorf("build cloudinary upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloudinary upload request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("read cloudinary response: %w", err)
	}

	var parsedResp uploadResponse
	if err := json.Unmarshal(body, &parsedResp); err != nil {
		return "", fmt.Errorf("decode cloudinary response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsedResp.Error != nil && parsedResp.Error.Message != "" {
			return "", fmt.Errorf("cloudinary upload failed: %s", parsedResp.Error.Message)
		}
		return "", fmt.Errorf("cloudinary upload failed with status %d", resp.StatusCode)
	}

	if parsedResp.SecureURL == "" {
		return "", fmt.Errorf("cloudinary response missing secure_url")
	}

	return parsedResp.SecureURL, nil
}

// sign builds the Cloudinary request signature: params sorted by key,
// joined with &, then the API secret, hashed with SHA-1.
func (c *Cloudinary) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}

	h := sha1.New() // #nosec G401: cloudinary API signature requires SHA-1.
	_, _ = h.Write([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(h.Sum(nil))
}
