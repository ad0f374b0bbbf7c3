package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"webclip/internal/apperr"
	"webclip/internal/config"
	"webclip/internal/models"
	"webclip/internal/transport"
)

// CredentialService runs the token exchanges of one publish cycle. It holds no tokens;
// every token it returns belongs to the caller's session.
type CredentialService struct {
	transport   transport.Transport
	feishu      config.FeishuConfig
	auth        config.AuthConfig
	authBaseURL string
	log         zerolog.Logger
}

// NewCredentialService needs a transport that can read response bodies: tokens come
// back in them.
func NewCredentialService(tr transport.Transport, cfg *config.Config, log zerolog.Logger) *CredentialService {
	return &CredentialService{
		transport:   tr,
		feishu:      cfg.Feishu,
		auth:        cfg.Auth,
		authBaseURL: cfg.Endpoint().AuthURL,
		log:         log,
	}
}

// AppAccessToken exchanges the app credential for an app access token.
func (s *CredentialService) AppAccessToken(ctx context.Context) (string, error) {
	const op = "app access token"

	res, err := s.transport.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    s.feishu.URL(config.PathAppAccessToken),
		Body:   s.feishu.Credential(),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := res.Err(op); err != nil {
		return "", err
	}

	var payload models.AppAccessTokenResponse
	if len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, &payload); err != nil {
			return "", apperr.Transport(err, op+": decode response", map[string]any{"body": string(res.Body)})
		}
	}
	if payload.AppAccessToken == "" {
		return "", apperr.Transport(nil, op+": no token in response", map[string]any{"body": string(res.Body), "opaque": res.Opaque})
	}

	s.log.Debug().Int("expire", payload.Expire).Msg("app access token obtained")
	return payload.AppAccessToken, nil
}

// AuthorizationURL builds the consent page URL. It carries exactly client_id,
// redirect_uri, scope and state, and is identical for identical configuration.
func (s *CredentialService) AuthorizationURL() string {
	q := url.Values{}
	q.Set("client_id", s.feishu.AppID)
	q.Set("redirect_uri", s.auth.RedirectURI)
	q.Set("scope", s.auth.Scope)
	q.Set("state", s.auth.State)
	return s.authBaseURL + "?" + q.Encode()
}

// ExchangeAuthorizationCode trades a one-time code for a user token pair, then refreshes
// that pair once and returns the refreshed one.
func (s *CredentialService) ExchangeAuthorizationCode(ctx context.Context, appAccessToken, code string) (models.UserTokenPair, error) {
	const op = "exchange authorization code"

	pair, err := s.requestPair(ctx, op, config.PathUserAccessToken, appAccessToken, map[string]string{
		"grant_type": "authorization_code",
		"code":       code,
	})
	if err != nil {
		return models.UserTokenPair{}, err
	}
	s.log.Debug().Int("expires_in", pair.ExpiresIn).Msg("user access token issued")

	// Every fresh pair is refreshed before first use. No documented reason exists for
	// this; it is kept as the service has always been driven this way.
	return s.RefreshAccessToken(ctx, pair.AccessToken, pair.RefreshToken)
}

// RefreshAccessToken asks for a new pair, authenticated with the current access token.
func (s *CredentialService) RefreshAccessToken(ctx context.Context, accessToken, refreshToken string) (models.UserTokenPair, error) {
	const op = "refresh access token"

	pair, err := s.requestPair(ctx, op, config.PathRefreshToken, accessToken, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
	if err != nil {
		return models.UserTokenPair{}, err
	}
	s.log.Debug().Int("expires_in", pair.ExpiresIn).Msg("user access token refreshed")
	return pair, nil
}

func (s *CredentialService) requestPair(ctx context.Context, op, path, bearer string, body map[string]string) (models.UserTokenPair, error) {
	res, err := s.transport.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     s.feishu.URL(path),
		Headers: map[string]string{"Authorization": "Bearer " + bearer},
		Body:    body,
	})
	if err != nil {
		return models.UserTokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := res.Err(op); err != nil {
		return models.UserTokenPair{}, err
	}

	var pair models.UserTokenPair
	if len(res.Data) > 0 {
		if err := json.Unmarshal(res.Data, &pair); err != nil {
			return models.UserTokenPair{}, apperr.Transport(err, op+": decode token data", map[string]any{"body": string(res.Body)})
		}
	}
	if pair.AccessToken == "" {
		return models.UserTokenPair{}, apperr.Transport(nil, op+": no access token in response", map[string]any{"body": string(res.Body), "opaque": res.Opaque})
	}
	return pair, nil
}
