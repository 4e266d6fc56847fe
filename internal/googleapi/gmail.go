package googleapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const gmailDefaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

// SenderSelf is the Gmail API alias for the authenticated user.
const SenderSelf = "me"

// Gmail sends mail through the Gmail REST API.
type Gmail struct {
	httpClient *http.Client
	baseURL    string
}

// NewGmail wraps an authorized HTTP client.
func NewGmail(httpClient *http.Client) *Gmail {
	return &Gmail{httpClient: httpClient, baseURL: gmailDefaultBaseURL}
}

// SentMessage is the metadata Gmail returns for a delivered message.
type SentMessage struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	LabelIDs []string `json:"labelIds"`
}

// SendHTML sends an HTML email from the authenticated account. The message
// is assembled as MIME and base64url encoded, as the API requires.
func (g *Gmail) SendHTML(ctx context.Context, to, subject, htmlBody string) (*SentMessage, error) {
	raw := EncodeHTMLMessage(SenderSelf, to, subject, htmlBody)
	payload, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return nil, fmt.Errorf("gmail: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/users/%s/messages/send", g.baseURL, SenderSelf)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gmail: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gmail: send to %s: %w", to, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gmail: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gmail: send failed with status %d: %s", resp.StatusCode, string(body))
	}

	var sent SentMessage
	if err := json.Unmarshal(body, &sent); err != nil {
		return nil, fmt.Errorf("gmail: parse response: %w", err)
	}
	return &sent, nil
}

// EncodeHTMLMessage builds an RFC 2822 HTML message and encodes it the way
// the Gmail API expects (base64url without padding).
func EncodeHTMLMessage(from, to, subject, htmlBody string) string {
	var msg strings.Builder
	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)
	return base64.RawURLEncoding.EncodeToString([]byte(msg.String()))
}
