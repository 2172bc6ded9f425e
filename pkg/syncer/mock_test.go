package syncer

import (
	"context"
	"fmt"
	"sync"

	"github.com/OpenSiFli/SiFliMirrorSync/pkg/cosclient"
)

// mockClient is a mock implementation of cosclient.Client for testing.
type mockClient struct {
	mu sync.Mutex

	endpoint     cosclient.Endpoint
	configCalls  []cosclient.Endpoint
	uploads      map[cosclient.Endpoint][]string // keys uploaded per endpoint
	deletes      []string
	listCalls    int
	remoteKeys   []string
	uploadFunc   func(endpoint cosclient.Endpoint, req *cosclient.UploadRequest) error
	listKeysFunc func(prefix string) ([]string, error)
	deleteFunc   func(key string) error
}

func newMockClient() *mockClient {
	return &mockClient{
		uploads: make(map[cosclient.Endpoint][]string),
	}
}

func (m *mockClient) ConfigureEndpoint(kind cosclient.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoint = kind
	m.configCalls = append(m.configCalls, kind)
}

func (m *mockClient) Upload(ctx context.Context, req *cosclient.UploadRequest) error {
	m.mu.Lock()
	endpoint := m.endpoint
	m.uploads[endpoint] = append(m.uploads[endpoint], req.Key)
	m.mu.Unlock()

	if m.uploadFunc != nil {
		return m.uploadFunc(endpoint, req)
	}
	return nil
}

func (m *mockClient) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()

	if m.listKeysFunc != nil {
		return m.listKeysFunc(prefix)
	}
	return m.remoteKeys, nil
}

func (m *mockClient) Delete(ctx context.Context, key string) error {
	if m.deleteFunc != nil {
		if err := m.deleteFunc(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.deletes = append(m.deletes, key)
	m.mu.Unlock()
	return nil
}

// failEndpoint returns an uploadFunc failing every upload on the given endpoint.
func failEndpoint(endpoints ...cosclient.Endpoint) func(cosclient.Endpoint, *cosclient.UploadRequest) error {
	return func(endpoint cosclient.Endpoint, req *cosclient.UploadRequest) error {
		for _, e := range endpoints {
			if endpoint == e {
				return fmt.Errorf("injected failure on %s", endpoint)
			}
		}
		return nil
	}
}
