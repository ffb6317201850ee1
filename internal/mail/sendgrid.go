package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const sendEndpoint = "https://api.sendgrid.com/v3/mail/send"

// SendGrid delivers transactional account emails through the SendGrid v3
// JSON API.
type SendGrid struct {
	apiKey      string
	from        string
	frontendURL string
	endpoint    string
	httpClient  *http.Client
}

func NewSendGrid(apiKey, from, frontendURL string) (*SendGrid, error) {
	apiKey = strings.TrimSpace(apiKey)
	from = strings.TrimSpace(from)
	if apiKey == "" || from == "" {
		return nil, fmt.Errorf("invalid sendgrid credentials")
	}

	return &SendGrid{
		apiKey:      apiKey,
		from:        from,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		endpoint:    sendEndpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

func (s *SendGrid) SendVerificationEmail(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", s.frontendURL, token)
	html := fmt.Sprintf(`<h1>Verify Your Email Address</h1>
<p>Click the link below to verify your email address:</p>
<a href="%s">Verify Email</a>`, link)
	return s.send(ctx, to, "Verify Your Email", html)
}

func (s *SendGrid) SendResetPasswordEmail(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", s.frontendURL, token)
	html := fmt.Sprintf(`<h1>Reset Your Password</h1>
<p>Click the link below to reset your password:</p>
<a href="%s">Reset Password</a>`, link)
	return s.send(ctx, to, "Reset Your Password", html)
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type emailAddress struct {
	Email string `json:"email"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (s *SendGrid) send(ctx context.Context, to, subject, html string) error {
	payload, err := json.Marshal(sendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: to}}}},
		From:             emailAddress{Email: s.from},
		Subject:          subject,
		Content:          []content{{Type: "text/html", Value: html}},
	})
	if err != nil {
		return fmt.Errorf("encode sendgrid payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sendgrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("sendgrid send failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
