// Package kakao sends text memos to the user's own Kakao Talk chat.
package kakao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/umputun/t3xtart/pkg/auth"
)

// default endpoints and limits.
const (
	DefaultSendURL = "https://kapi.kakao.com/v2/api/talk/memo/default/send"
	DefaultLinkURL = "https://playmcp.kakao.com"
	DefaultTimeout = 10 * time.Second
)

// ErrRejected is any non-authorization delivery failure.
var ErrRejected = errors.New("delivery rejected")

// Client posts "memo to me" text templates.
type Client struct {
	SendURL string
	LinkURL string
	HTTP    *http.Client
}

// NewClient makes a Client with the given endpoints, empty values use defaults.
func NewClient(sendURL, linkURL string, timeout time.Duration) *Client {
	if sendURL == "" {
		sendURL = DefaultSendURL
	}
	if linkURL == "" {
		linkURL = DefaultLinkURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{SendURL: sendURL, LinkURL: linkURL, HTTP: &http.Client{Timeout: timeout}}
}

type textTemplate struct {
	ObjectType string `json:"object_type"`
	Text       string `json:"text"`
	Link       struct {
		WebURL       string `json:"web_url"`
		MobileWebURL string `json:"mobile_web_url"`
	} `json:"link"`
}

type sendResponse struct {
	ResultCode *int   `json:"result_code"`
	Msg        string `json:"msg"`
}

// Send posts text with the bearer token. 401 is reported as auth.ErrExpired,
// everything else that isn't a success wraps ErrRejected.
func (c *Client) Send(ctx context.Context, token, text string) error {
	tmpl := textTemplate{ObjectType: "text", Text: text}
	tmpl.Link.WebURL, tmpl.Link.MobileWebURL = c.LinkURL, c.LinkURL
	tj, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}

	form := url.Values{}
	form.Set("template_object", string(tj))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SendURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("kakao status 401: %w", auth.ErrExpired)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err == nil && sr.ResultCode != nil && *sr.ResultCode != 0 {
		return fmt.Errorf("%w: result code %d: %s", ErrRejected, *sr.ResultCode, sr.Msg)
	}
	return nil
}
