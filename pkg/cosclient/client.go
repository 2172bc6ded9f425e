package cosclient

import (
	"context"
)

// Endpoint selects which COS endpoint the client talks to.
type Endpoint string

const (
	// EndpointPrimary is the regional endpoint. Kept on a short leash so a
	// misbehaving region fails over quickly.
	EndpointPrimary Endpoint = "primary"

	// EndpointAccelerated is the global acceleration endpoint used as the
	// fallback after a primary failure.
	EndpointAccelerated Endpoint = "accelerated"
)

// UploadRequest describes one object upload.
type UploadRequest struct {
	Key       string // full remote key, prefix included
	LocalPath string
}

// Client is the object-storage capability consumed by the sync engine.
// Implementations are bound to a single bucket for the lifetime of a run.
type Client interface {
	// ConfigureEndpoint switches the client to the given endpoint. All
	// subsequent calls use that endpoint until reconfigured.
	ConfigureEndpoint(kind Endpoint)
	Upload(ctx context.Context, req *UploadRequest) error
	// ListKeys returns every object key under prefix, fully qualified.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}
