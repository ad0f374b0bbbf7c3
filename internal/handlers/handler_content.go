package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"webclip/internal/apperr"
)

type extractRequest struct {
	URL string `json:"url"`
}

type convertRequest struct {
	HTML string `json:"html"`
}

type convertResponse struct {
	Markdown string `json:"markdown"`
}

func (h *Handler) extractContent(ctx context.Context, payload json.RawMessage) (any, error) {
	var req extractRequest
	if err := decodePayload(payload, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, apperr.BadInput("url is required")
	}
	return h.extractor.Extract(ctx, req.URL)
}

func (h *Handler) convertToMarkdown(_ context.Context, payload json.RawMessage) (any, error) {
	var req convertRequest
	if err := decodePayload(payload, &req); err != nil {
		return nil, err
	}
	md, err := h.converter.Convert(req.HTML)
	if err != nil {
		return nil, err
	}
	return convertResponse{Markdown: md}, nil
}
