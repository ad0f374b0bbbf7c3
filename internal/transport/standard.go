package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"webclip/internal/apperr"
)

const defaultResponseBodyLimit int64 = 10 << 20

// Standard reads the HTTP status and decodes the JSON envelope.
type Standard struct {
	client               HTTPDoer
	MaxResponseBodyBytes int64
}

func NewStandard(client HTTPDoer) *Standard {
	return &Standard{client: client, MaxResponseBodyBytes: defaultResponseBodyLimit}
}

func (s *Standard) Do(ctx context.Context, req Request) (Response, error) {
	httpReq, err := newHTTPRequest(ctx, req)
	if err != nil {
		return Response{}, err
	}

	httpRes, err := s.client.Do(httpReq)
	if err != nil {
		return Response{}, apperr.Transport(err, "transport: execute http request",
			map[string]any{"method": httpReq.Method, "url": req.URL})
	}
	defer httpRes.Body.Close()

	limit := s.MaxResponseBodyBytes
	if limit <= 0 {
		limit = defaultResponseBodyLimit
	}
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return Response{}, apperr.Transport(err, "transport: read response body",
			map[string]any{"url": req.URL, "http_status": httpRes.StatusCode})
	}
	if int64(len(body)) > limit {
		return Response{}, apperr.Transport(nil, fmt.Sprintf("transport: response body exceeds %d bytes", limit),
			map[string]any{"url": req.URL})
	}

	if httpRes.StatusCode < 200 || httpRes.StatusCode > 299 {
		return Response{}, apperr.Transport(nil, fmt.Sprintf("transport: http status %d: %s", httpRes.StatusCode, body),
			map[string]any{"url": req.URL, "status": httpRes.StatusCode, "body": string(body)})
	}

	res := Response{StatusCode: httpRes.StatusCode, Body: body}
	if err := json.Unmarshal(body, &res.Envelope); err != nil {
		return Response{}, apperr.Transport(err, "transport: malformed response body",
			map[string]any{"url": req.URL, "body": string(body)})
	}
	// A reply without the sentinel field would otherwise read as code 0.
	var sentinel struct {
		Code *int `json:"code"`
	}
	if err := json.Unmarshal(body, &sentinel); err != nil || sentinel.Code == nil {
		return Response{}, apperr.Transport(err, "transport: malformed response: missing code",
			map[string]any{"url": req.URL, "body": string(body)})
	}
	return res, nil
}

var _ Transport = (*Standard)(nil)
