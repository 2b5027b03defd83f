// Package gateway is an HTTP client for a JSON SMS gateway. The endpoint and
// API token are injected at construction; credentials never live in code.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	token   string
	sender  string
	http    *http.Client
}

// New builds a gateway client. sender is the originator name shown to the
// recipient.
func New(baseURL, token, sender string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		sender:  sender,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *Client) Send(ctx context.Context, to, message string) error {
	body, err := json.Marshal(sendRequest{To: to, From: c.sender, Message: message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms gateway: status %d", resp.StatusCode)
	}
	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("sms gateway: decode response: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("sms gateway: rejected: %s", out.Message)
	}
	return nil
}
