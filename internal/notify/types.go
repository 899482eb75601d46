package notify

import (
	"context"
	"fmt"
)

// SendRequest describes one templated message to a recipient.
type SendRequest struct {
	Recipient    string   `json:"recipient"` // E.164-like phone number
	TemplateID   string   `json:"template_id"`
	Language     string   `json:"language"`
	Placeholders []string `json:"placeholders,omitempty"`
	MediaURL     string   `json:"media_url,omitempty"`
}

// SendResult is the provider's acknowledgment of an accepted send.
type SendResult struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// SendError is a typed provider rejection.
type SendError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("provider rejected send (%d %s): %s", e.StatusCode, e.Code, e.Detail)
}

// Sender is the outbound messaging collaborator.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}
