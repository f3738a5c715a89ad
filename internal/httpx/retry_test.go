package httpx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingidentity/davincikit/capability"
)

type fakeHTTP struct {
	mu    sync.Mutex
	calls int
	send  func(attempt int) (capability.Response, error)
}

func (h *fakeHTTP) Send(_ context.Context, _ capability.Request) (capability.Response, error) {
	h.mu.Lock()
	h.calls++
	attempt := h.calls
	h.mu.Unlock()
	return h.send(attempt)
}

func (h *fakeHTTP) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func TestSend_SucceedsOnFirstTry(t *testing.T) {
	fake := &fakeHTTP{send: func(int) (capability.Response, error) {
		return capability.Response{StatusCode: 200}, nil
	}}

	resp, err := Send(context.Background(), fake, capability.Request{}, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, fake.callCount())
}

func TestSend_RetriesOn5xxThenSucceeds(t *testing.T) {
	fake := &fakeHTTP{send: func(attempt int) (capability.Response, error) {
		if attempt < 3 {
			return capability.Response{StatusCode: 503}, nil
		}
		return capability.Response{StatusCode: 200}, nil
	}}

	resp, err := Send(context.Background(), fake, capability.Request{}, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 3, fake.callCount())
}

func TestSend_DoesNotRetry4xx(t *testing.T) {
	fake := &fakeHTTP{send: func(int) (capability.Response, error) {
		return capability.Response{StatusCode: 404}, nil
	}}

	resp, err := Send(context.Background(), fake, capability.Request{}, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, 1, fake.callCount(), "a 4xx response must not be retried")
}

func TestSend_RetriesTransportErrors(t *testing.T) {
	wantErr := errors.New("connection reset")
	fake := &fakeHTTP{send: func(attempt int) (capability.Response, error) {
		if attempt < 2 {
			return capability.Response{}, wantErr
		}
		return capability.Response{StatusCode: 200}, nil
	}}

	resp, err := Send(context.Background(), fake, capability.Request{}, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, fake.callCount())
}

func TestSend_ExhaustsAttemptsAndReturnsLastFailure(t *testing.T) {
	fake := &fakeHTTP{send: func(int) (capability.Response, error) {
		return capability.Response{StatusCode: 500}, nil
	}}

	resp, err := Send(context.Background(), fake, capability.Request{}, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, 3, fake.callCount())
}

func TestSend_ZeroValueConfigDefaultsToThreeAttempts(t *testing.T) {
	fake := &fakeHTTP{send: func(int) (capability.Response, error) {
		return capability.Response{StatusCode: 500}, nil
	}}

	_, err := Send(context.Background(), fake, capability.Request{}, RetryConfig{BaseDelay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 3, fake.callCount())
}

func TestSend_ContextCancelledDuringBackoffAborts(t *testing.T) {
	fake := &fakeHTTP{send: func(int) (capability.Response, error) {
		return capability.Response{StatusCode: 500}, nil
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := Send(ctx, fake, capability.Request{}, RetryConfig{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
