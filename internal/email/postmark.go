package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Client sends transactional mail through Postmark. An unconfigured client
// (empty server token) is valid; callers check Configured before sending.
type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c != nil && c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendConfirmation sends the signup confirmation link. redirectTo is carried
// through the confirmation endpoint and applied after the token is redeemed.
func (c *Client) SendConfirmation(toEmail, token, redirectTo string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	q := url.Values{}
	q.Set("token", token)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	link := fmt.Sprintf("%s/auth/confirm?%s", c.baseURL, q.Encode())

	textBody := fmt.Sprintf("Confirm your Quicknotes account by opening the link below:\n\n%s\n\nIf you didn't sign up, you can ignore this email.", link)
	htmlBody := fmt.Sprintf(
		`<p>Confirm your Quicknotes account by clicking the link below:</p><p><a href="%s">Confirm email</a></p><p>If you didn't sign up, you can ignore this email.</p>`,
		link,
	)

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  "Confirm your Quicknotes account",
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.postmarkapp.com/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
