// Package mailer provides clients for sending transactional email through
// an HTTP mail relay.
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abrezinsky/standings/internal/logger"
)

// ErrNoRecipient is returned when a message has no To address
var ErrNoRecipient = errors.New("mailer: message has no recipient")

// Attachment is a file sent with a message. Inline attachments are
// referenced from the HTML body as cid:<ContentID>.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id,omitempty"`
	Inline      bool   `json:"inline,omitempty"`
	Content     []byte `json:"-"`
}

// Message is a single outgoing email
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Client defines the interface for sending email
type Client interface {
	// SendEmail delivers one message
	SendEmail(ctx context.Context, msg Message) error
}

// relayAttachment is the wire form of an attachment
type relayAttachment struct {
	Attachment
	Content string `json:"content"`
}

// relayRequest is the JSON body posted to the relay
type relayRequest struct {
	From        string            `json:"from"`
	To          []string          `json:"to"`
	Subject     string            `json:"subject"`
	HTML        string            `json:"html"`
	Attachments []relayAttachment `json:"attachments,omitempty"`
}

// relayResponse is the relay's reply
type relayResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// HTTPClient posts messages as JSON to a mail relay
type HTTPClient struct {
	endpoint   string
	token      string
	from       string
	httpClient *http.Client
	log        logger.Logger
}

// NewHTTPClient creates a relay client. token is sent as a Bearer token
// when set.
func NewHTTPClient(endpoint, token, from string, log logger.Logger) *HTTPClient {
	return NewHTTPClientWithHTTPClient(endpoint, token, from, &http.Client{Timeout: 30 * time.Second}, log)
}

// NewHTTPClientWithHTTPClient creates a relay client with a custom http.Client
func NewHTTPClientWithHTTPClient(endpoint, token, from string, httpClient *http.Client, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      token,
		from:       from,
		httpClient: httpClient,
		log:        log,
	}
}

// Endpoint returns the configured relay URL
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// SendEmail posts the message to the relay and checks its reply
func (c *HTTPClient) SendEmail(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	payload := relayRequest{
		From:    c.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}
	for _, a := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, relayAttachment{
			Attachment: a,
			Content:    base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.Debug("Mail relay request", "url", req.URL.String(), "to", msg.To, "subject", msg.Subject)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to mail relay: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("Mail relay response", "status", resp.StatusCode, "body", string(respBody))

	var reply relayResponse
	_ = json.Unmarshal(respBody, &reply)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if reply.Error != "" {
			return fmt.Errorf("mail relay returned status %d: %s", resp.StatusCode, reply.Error)
		}
		return fmt.Errorf("mail relay returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if reply.Error != "" {
		return fmt.Errorf("mail relay error: %s", reply.Error)
	}
	return nil
}

// LogClient writes messages to the log instead of sending them. Used when
// no relay is configured.
type LogClient struct {
	log logger.Logger
}

// NewLogClient creates a LogClient
func NewLogClient(log logger.Logger) *LogClient {
	return &LogClient{log: log}
}

// SendEmail logs the message
func (c *LogClient) SendEmail(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	c.log.Info("Email not sent, no mail relay configured", "to", msg.To, "subject", msg.Subject,
		"attachments", len(msg.Attachments))
	return nil
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*LogClient)(nil)
)
