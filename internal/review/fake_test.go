package review

import (
	"context"
	"sync"

	"github.com/dshills/revbot/internal/providers"
)

// fakeProvider replays canned responses and records requests.
type fakeProvider struct {
	mu        sync.Mutex
	responses []providerResponse
	errs      []error
	requests  []providers.ReviewRequest
	block     bool
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Review(ctx context.Context, req providers.ReviewRequest) (providers.ReviewResponse, error) {
	f.mu.Lock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return providers.ReviewResponse{}, ctx.Err()
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return providers.ReviewResponse{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return providers.ReviewResponse{}, nil
}

func reply(content string) providerResponse {
	return providerResponse{Content: content}
}

type providerResponse = providers.ReviewResponse
