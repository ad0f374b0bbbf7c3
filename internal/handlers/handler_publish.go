package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"webclip/internal/apperr"
	"webclip/internal/models"
)

type publishRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type clipRequest struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

type clipResponse struct {
	Title  string              `json:"title"`
	URL    string              `json:"url"`
	Size   int                 `json:"size"`
	Upload models.UploadResult `json:"upload"`
}

func (h *Handler) publish(ctx context.Context, payload json.RawMessage) (any, error) {
	var req publishRequest
	if err := decodePayload(payload, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperr.BadInput("title is required")
	}
	return h.publisher.Publish(ctx, req.Title, []byte(req.Content))
}

// clip extracts a page, converts it and publishes the result under the page title
// unless the caller supplies one.
func (h *Handler) clip(ctx context.Context, payload json.RawMessage) (any, error) {
	var req clipRequest
	if err := decodePayload(payload, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, apperr.BadInput("url is required")
	}

	page, err := h.extractor.Extract(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	md, err := h.converter.Convert(page.Content)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = page.Title
	}
	res, err := h.publisher.Publish(ctx, title, []byte(md))
	if err != nil {
		return nil, err
	}
	return clipResponse{Title: title, URL: req.URL, Size: len(md), Upload: res}, nil
}
