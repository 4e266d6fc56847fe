// Package webhooks receives Asana webhook deliveries so onboarding task
// updates (completions, assignments) can flow back into the TUI without
// polling the API.
package webhooks

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProtocolVersion identifies the receiver contract version exposed via /health.
const ProtocolVersion = "1.0.0"

// Resource is the minimal Asana object reference carried in webhook events.
type Resource struct {
	GID          string `json:"gid"`
	ResourceType string `json:"resource_type"`
	Name         string `json:"name,omitempty"`
}

// Event is a single change notification from an Asana webhook delivery.
// DeliveryID and ReceivedAt are assigned by the server, not by Asana.
type Event struct {
	DeliveryID string    `json:"delivery_id,omitempty"`
	Action     string    `json:"action"`
	Resource   Resource  `json:"resource"`
	User       *Resource `json:"user,omitempty"`
	Parent     *Resource `json:"parent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ReceivedAt time.Time `json:"-"`
}

// Normalize applies canonical formatting before validation.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	e.Action = strings.ToLower(strings.TrimSpace(e.Action))
	e.Resource.GID = strings.TrimSpace(e.Resource.GID)
	e.Resource.ResourceType = strings.TrimSpace(e.Resource.ResourceType)
}

// Validate enforces baseline schema requirements for incoming events.
func (e Event) Validate() error {
	if e.Action == "" {
		return errors.New("action is required")
	}
	if e.Resource.GID == "" {
		return errors.New("resource.gid is required")
	}
	return nil
}

// Key identifies an event for deduplication. Asana retries deliveries, so
// the same (action, resource, created_at) triple can arrive more than once.
func (e Event) Key() string {
	if e.Resource.GID == "" {
		return ""
	}
	return fmt.Sprintf("%s|%s|%s", e.Action, e.Resource.GID, e.CreatedAt.UTC().Format(time.RFC3339Nano))
}

// EventProcessor consumes validated events.
type EventProcessor interface {
	HandleEvent(Event) error
}

// EventProcessorFunc adapts a function into an EventProcessor.
type EventProcessorFunc func(Event) error

// HandleEvent executes f(e).
func (f EventProcessorFunc) HandleEvent(e Event) error {
	if f == nil {
		return nil
	}
	return f(e)
}

// Logger records receiver status information. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	RouterReady   bool   `json:"router_ready"`
	Handshaken    bool   `json:"handshaken"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type deliveryResponse struct {
	Status     string    `json:"status"`
	Accepted   int       `json:"accepted"`
	ServerTime time.Time `json:"server_time"`
}
