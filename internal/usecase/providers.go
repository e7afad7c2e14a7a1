package usecase

import "context"

// PushPayload is what the push provider delivers to a device.
type PushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushResult is the per-token outcome of a multicast send. Invalid marks
// tokens the provider reports as expired or unregistered.
type PushResult struct {
	Token     string
	Delivered bool
	Invalid   bool
}

type PushProvider interface {
	SendMulticast(ctx context.Context, tokens []string, payload PushPayload) ([]PushResult, error)
}

// MediaStore deletes remotely stored media. Failures during cascading
// deletes are logged, never fatal.
type MediaStore interface {
	Delete(ctx context.Context, url, mediaType string) error
}
