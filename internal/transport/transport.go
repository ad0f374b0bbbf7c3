// Package transport performs the outbound HTTP calls to the document service and
// normalizes every reply into a models.Envelope.
//
// Two response strategies exist and are never mixed: Standard reads status and body,
// Opaque dispatches the request and reports {code: 0, data: null} without looking at
// the reply. Opaque mode cannot tell a real success from a silently dropped request.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"webclip/internal/apperr"
	"webclip/internal/models"
)

// Mode selects the response handling strategy.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeOpaque   Mode = "opaque"
)

const defaultClientTimeout = 60 * time.Second

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes one outbound call. Body is nil, a *MultipartForm sent as-is, or any
// value that is JSON-encoded.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// Response is the decoded reply. Body holds the raw bytes for diagnostics and is empty
// in opaque mode.
type Response struct {
	models.Envelope
	StatusCode int
	Body       []byte
	Opaque     bool
}

// Err returns nil when the sentinel code signals success, a service rejection otherwise.
func (r Response) Err(op string) error {
	if r.Code == 0 {
		return nil
	}
	return apperr.ServiceRejection(op, r.Code, r.Msg, r.Body)
}

// Transport performs one request.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// New returns the transport for mode. A nil client gets a default *http.Client.
func New(mode Mode, client HTTPDoer) (Transport, error) {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	switch mode {
	case ModeStandard, "":
		return NewStandard(client), nil
	case ModeOpaque:
		return NewOpaque(client), nil
	default:
		return nil, fmt.Errorf("transport: unknown mode %q", mode)
	}
}

// newHTTPRequest builds the request shared by both strategies.
func newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodPost
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, apperr.Transport(err, "transport: encode request body", map[string]any{"url": req.URL})
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, apperr.Transport(err, "transport: create http request", map[string]any{"method": method, "url": req.URL})
	}
	httpReq.Header.Set("Accept", "application/json")
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(key, value)
	}
	// The body encoding owns the content type; a caller value would break the multipart boundary.
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *MultipartForm:
		buf, contentType, err := b.Encode()
		if err != nil {
			return nil, "", err
		}
		return buf, contentType, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json; charset=utf-8", nil
	}
}
