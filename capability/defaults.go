package capability

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout is the HTTP capability's default per-request timeout,
// overridable per client.
const DefaultTimeout = 15 * time.Second

// httpCapability is the default HTTP capability backed by net/http. It
// never follows redirects: the underlying client's CheckRedirect always
// aborts so 3xx responses surface to the caller with their Location
// header intact.
type httpCapability struct {
	client   *http.Client
	platform Platform
}

// NewHTTPCapability builds the default HTTP capability. A nil client
// gets a fresh *http.Client with DefaultTimeout and redirect-following
// disabled. A nil platform omits x-requested-platform.
func NewHTTPCapability(client *http.Client, platform Platform) HTTP {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &httpCapability{client: client, platform: platform}
}

func (h *httpCapability) Send(ctx context.Context, req Request) (Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("davincikit: build request: %w", err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("x-requested-with", "ping-sdk")
	if h.platform != nil {
		httpReq.Header.Set("x-requested-platform", fmt.Sprintf("%s/%s", h.platform.OS(), h.platform.OSVersion()))
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("davincikit: send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("davincikit: read response: %w", err)
	}
	return Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// systemClock is the default Clock, backed by time.Now.
type systemClock struct{}

// NewSystemClock returns a Clock backed by the real wall clock.
func NewSystemClock() Clock { return systemClock{} }

func (systemClock) Now() int64 { return time.Now().Unix() }

// zapLogger adapts *zap.Logger to the Logger capability.
type zapLogger struct {
	l *zap.Logger
}

// NewZapLogger wraps a *zap.Logger as the default Logger capability. A
// nil logger falls back to zap.NewNop, keeping logging opt-in.
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{l: l}
}

func (z *zapLogger) Log(level Level, msg string, fields ...Field) {
	zf := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		zf = append(zf, zap.Any(f.Key, f.Value))
	}
	switch level {
	case LevelDebug:
		z.l.Debug(msg, zf...)
	case LevelInfo:
		z.l.Info(msg, zf...)
	case LevelWarn:
		z.l.Warn(msg, zf...)
	case LevelError:
		z.l.Error(msg, zf...)
	}
}
