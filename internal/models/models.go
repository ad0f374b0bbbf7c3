package models

import (
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
)

// AppCredential identifies the application to the document service
type AppCredential struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

// Envelope is the response shape shared by every document service endpoint.
// Code 0 is the only success value, independent of the HTTP status.
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// AppAccessTokenResponse is returned by the internal app token endpoint
type AppAccessTokenResponse struct {
	Code           int    `json:"code"`
	Msg            string `json:"msg"`
	AppAccessToken string `json:"app_access_token"`
	Expire         int    `json:"expire"`
}

// UserTokenPair is the data payload of the user token and refresh endpoints
type UserTokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	OpenID           string `json:"open_id,omitempty"`
}

// OAuth2 converts the pair into an oauth2 token usable as a bearer credential.
func (p UserTokenPair) OAuth2(now time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
	}
	if p.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	return tok
}

// UploadRequest is the document handed to the publisher
type UploadRequest struct {
	Title   string
	Content []byte
}

// FileName is the remote file name derived from the title
func (r UploadRequest) FileName() string {
	return r.Title + ".md"
}

// UploadResult is the data payload returned by a successful upload.
// Opaque is set when the transport could not read the response.
type UploadResult struct {
	FileToken string          `json:"file_token,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	Opaque    bool            `json:"opaque,omitempty"`
}

// PageContent is what the extractor pulls out of a web page
type PageContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
}

// ActionResponse is the reply of every caller-facing action
type ActionResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}
