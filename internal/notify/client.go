package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client posts template sends to the messaging provider's HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient returns a client for the provider at baseURL authenticating with
// a bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

// Send submits the message and returns the provider acknowledgment. Non-2xx
// responses become a *SendError.
func (c *Client) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		sendErr := &SendError{StatusCode: resp.StatusCode}
		var parsed struct {
			Code   string `json:"code"`
			Detail string `json:"detail"`
		}
		if json.Unmarshal(respBody, &parsed) == nil {
			sendErr.Code = parsed.Code
			sendErr.Detail = parsed.Detail
		}
		if sendErr.Detail == "" {
			sendErr.Detail = string(respBody)
		}
		return nil, sendErr
	}

	var result SendResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return &result, nil
}
