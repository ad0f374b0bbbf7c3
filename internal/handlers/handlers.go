package handlers

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"webclip/internal/apperr"
	"webclip/internal/models"
)

// Action names a caller-facing operation.
type Action string

const (
	ActionExtractContent    Action = "extractContent"
	ActionConvertToMarkdown Action = "convertToMarkdown"
	ActionPublish           Action = "publish"
	ActionClip              Action = "clip"
)

const maxActionBodyBytes = 32 << 20

// ContentExtractor fetches a page and returns its title and body markup.
type ContentExtractor interface {
	Extract(ctx context.Context, pageURL string) (models.PageContent, error)
}

// MarkdownConverter renders markup as Markdown.
type MarkdownConverter interface {
	Convert(markup string) (string, error)
}

// DocumentPublisher uploads a Markdown document.
type DocumentPublisher interface {
	Publish(ctx context.Context, title string, content []byte) (models.UploadResult, error)
}

type actionFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Handler serves the action API. Its registry is filled once in New and never changes.
type Handler struct {
	extractor ContentExtractor
	converter MarkdownConverter
	publisher DocumentPublisher
	log       zerolog.Logger
	actions   map[Action]actionFunc
}

func New(extractor ContentExtractor, converter MarkdownConverter, publisher DocumentPublisher, log zerolog.Logger) *Handler {
	h := &Handler{
		extractor: extractor,
		converter: converter,
		publisher: publisher,
		log:       log,
	}
	h.actions = map[Action]actionFunc{
		ActionExtractContent:    h.extractContent,
		ActionConvertToMarkdown: h.convertToMarkdown,
		ActionPublish:           h.publish,
		ActionClip:              h.clip,
	}
	return h
}

// Routes registers the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health/live", HandleLive)
	r.Post("/api/actions/{action}", h.HandleAction)
}

// HandleAction decodes the body, runs the named action and replies with an ActionResponse.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	action := Action(chi.URLParam(r, "action"))
	fn, ok := h.actions[action]
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ActionResponse{Error: "unknown action " + string(action)})
		return
	}

	// Browsers send text/plain and form bodies cross-origin without a preflight.
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mediaType != "application/json" {
		writeJSON(w, http.StatusUnsupportedMediaType, models.ActionResponse{Error: "content type must be application/json"})
		return
	}

	var payload json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBodyBytes)).Decode(&payload); err != nil {
		writeError(w, apperr.BadInput("request body must be a JSON object: "+err.Error()))
		return
	}

	log := h.log.With().Str("action", string(action)).Logger()
	data, err := fn(r.Context(), payload)
	if err != nil {
		log.Error().Err(err).Int("status", apperr.StatusCode(err)).Msg("action failed")
		writeError(w, err)
		return
	}
	log.Debug().Msg("action completed")
	writeJSON(w, http.StatusOK, models.ActionResponse{Success: true, Data: data})
}

func decodePayload(payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return apperr.BadInput("invalid action payload: " + err.Error())
	}
	return nil
}
