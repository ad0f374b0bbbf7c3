package transport

import (
	"context"

	"webclip/internal/apperr"
)

// Opaque dispatches requests without reading replies. Every dispatched request reports
// {code: 0, data: null}; only a failure to dispatch is an error.
type Opaque struct {
	client HTTPDoer
}

func NewOpaque(client HTTPDoer) *Opaque {
	return &Opaque{client: client}
}

func (o *Opaque) Do(ctx context.Context, req Request) (Response, error) {
	httpReq, err := newHTTPRequest(ctx, req)
	if err != nil {
		return Response{}, err
	}

	httpRes, err := o.client.Do(httpReq)
	if err != nil {
		return Response{}, apperr.Transport(err, "transport: dispatch opaque request",
			map[string]any{"method": httpReq.Method, "url": req.URL})
	}
	_ = httpRes.Body.Close()

	return Response{Opaque: true}, nil
}

var _ Transport = (*Opaque)(nil)
