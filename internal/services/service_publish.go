package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"webclip/internal/apperr"
	"webclip/internal/config"
	"webclip/internal/models"
	"webclip/internal/transport"
)

// Authorizer obtains a one-time authorization code for the consent page at authURL.
type Authorizer interface {
	Authorize(ctx context.Context, authURL string) (string, error)
}

// Phase is the progress of a single publish session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAppTokenObtained
	PhaseAuthorizationGranted
	PhaseUserTokenObtained
	PhaseUploaded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAppTokenObtained:
		return "app_token_obtained"
	case PhaseAuthorizationGranted:
		return "authorization_granted"
	case PhaseUserTokenObtained:
		return "user_token_obtained"
	case PhaseUploaded:
		return "uploaded"
	default:
		return "unknown"
	}
}

// session carries the tokens of one publish. It is dropped when Publish returns.
type session struct {
	id       string
	request  models.UploadRequest
	phase    Phase
	appToken string
	code     string
	tokens   models.UserTokenPair
	log      zerolog.Logger
}

func (s *session) advance(p Phase) {
	s.phase = p
	s.log.Debug().Stringer("phase", p).Msg("publish phase")
}

// Publisher drives the full cycle: app token, user consent, token exchange, upload.
// Only one cycle runs at a time per Publisher.
type Publisher struct {
	credentials *CredentialService
	bridge      Authorizer
	uploads     transport.Transport
	uploadURL   string
	parentNode  string
	log         zerolog.Logger
	now         func() time.Time

	processing atomic.Bool
}

func NewPublisher(credentials *CredentialService, bridge Authorizer, uploads transport.Transport, cfg *config.Config, log zerolog.Logger) *Publisher {
	return &Publisher{
		credentials: credentials,
		bridge:      bridge,
		uploads:     uploads,
		uploadURL:   cfg.Feishu.URL(config.PathUploadAll),
		parentNode:  cfg.Feishu.ParentNode,
		log:         log,
		now:         time.Now,
	}
}

// InFlight reports whether a publish is currently running.
func (p *Publisher) InFlight() bool {
	return p.processing.Load()
}

// Publish uploads content as "<title>.md". A call made while another is running is
// rejected at once and does not disturb the running one.
func (p *Publisher) Publish(ctx context.Context, title string, content []byte) (models.UploadResult, error) {
	if !p.processing.CompareAndSwap(false, true) {
		return models.UploadResult{}, apperr.ConcurrentRequestRejected()
	}
	defer p.processing.Store(false)

	if strings.TrimSpace(title) == "" {
		return models.UploadResult{}, apperr.BadInput("title is required")
	}

	id := uuid.NewString()
	sess := &session{
		id:      id,
		request: models.UploadRequest{Title: title, Content: content},
		log:     p.log.With().Str("session", id).Logger(),
	}
	sess.log.Info().Str("file_name", sess.request.FileName()).Int("size", len(content)).Msg("publish started")

	result, err := p.run(ctx, sess)
	if err != nil {
		sess.log.Error().Err(err).Stringer("phase", sess.phase).Msg("publish failed")
		return models.UploadResult{}, err
	}
	sess.log.Info().Str("file_token", result.FileToken).Bool("opaque", result.Opaque).Msg("publish finished")
	return result, nil
}

func (p *Publisher) run(ctx context.Context, sess *session) (models.UploadResult, error) {
	var err error

	sess.appToken, err = p.credentials.AppAccessToken(ctx)
	if err != nil {
		return models.UploadResult{}, err
	}
	sess.advance(PhaseAppTokenObtained)

	sess.code, err = p.bridge.Authorize(ctx, p.credentials.AuthorizationURL())
	if err != nil {
		return models.UploadResult{}, fmt.Errorf("authorize: %w", err)
	}
	if sess.code == "" {
		return models.UploadResult{}, apperr.AuthorizationAbandoned("empty authorization code", nil)
	}
	sess.advance(PhaseAuthorizationGranted)

	sess.tokens, err = p.credentials.ExchangeAuthorizationCode(ctx, sess.appToken, sess.code)
	if err != nil {
		return models.UploadResult{}, err
	}
	sess.advance(PhaseUserTokenObtained)

	result, err := p.upload(ctx, sess)
	if err != nil {
		return models.UploadResult{}, err
	}
	sess.advance(PhaseUploaded)
	return result, nil
}

func (p *Publisher) upload(ctx context.Context, sess *session) (models.UploadResult, error) {
	const op = "upload file"

	tok := sess.tokens.OAuth2(p.now())
	if !tok.Valid() {
		return models.UploadResult{}, apperr.Transport(nil, op+": user access token is empty or expired", nil)
	}

	res, err := p.uploads.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     p.uploadURL,
		Headers: map[string]string{"Authorization": tok.Type() + " " + tok.AccessToken},
		Body:    p.uploadForm(sess.request),
	})
	if err != nil {
		return models.UploadResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := res.Err(op); err != nil {
		return models.UploadResult{}, err
	}

	result := models.UploadResult{Opaque: res.Opaque}
	data := bytes.TrimSpace(res.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return result, nil
	}
	result.Raw = res.Data

	var payload struct {
		FileToken string `json:"file_token"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		result.FileToken = payload.FileToken
	}
	return result, nil
}

// uploadForm lays out the multipart body. Field order is part of the wire contract.
func (p *Publisher) uploadForm(req models.UploadRequest) *transport.MultipartForm {
	form := &transport.MultipartForm{}
	form.Add("file_name", req.FileName())
	form.Add("parent_type", "explorer")
	if p.parentNode != "" {
		form.Add("parent_node", p.parentNode)
	}
	form.Add("size", strconv.Itoa(len(req.Content)))
	form.File = &transport.FilePart{
		FieldName:   "file",
		FileName:    req.FileName(),
		ContentType: "text/markdown",
		Content:     req.Content,
	}
	return form
}
