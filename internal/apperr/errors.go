// Package apperr defines the failure taxonomy of a publish cycle on top of go-errors envelopes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes carried by every envelope built in this package.
const (
	CodeTransportFailure          = "TRANSPORT_FAILURE"
	CodeServiceRejection          = "SERVICE_REJECTION"
	CodeAuthorizationAbandoned    = "AUTHORIZATION_ABANDONED"
	CodeConcurrentRequestRejected = "CONCURRENT_REQUEST_REJECTED"
	CodeBadInput                  = "BAD_INPUT"
)

// Transport reports a network-level failure or a response that could not be read.
// A received non-2xx status is recorded under the "status" metadata key.
func Transport(source error, message string, metadata map[string]any) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, goerrors.CategoryExternal)
	} else {
		err = goerrors.Wrap(source, goerrors.CategoryExternal, message)
	}
	err = err.WithCode(http.StatusBadGateway).WithTextCode(CodeTransportFailure)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ServiceRejection reports a well-formed response whose sentinel code was not zero.
// The raw body is embedded in the message and in metadata for diagnostics.
func ServiceRejection(op string, serviceCode int, msg string, body []byte) error {
	return goerrors.New(
		fmt.Sprintf("%s rejected by service (code %d, msg %q): %s", op, serviceCode, msg, body),
		goerrors.CategoryExternal,
	).
		WithCode(http.StatusBadGateway).
		WithTextCode(CodeServiceRejection).
		WithMetadata(map[string]any{
			"op":           op,
			"service_code": serviceCode,
			"service_msg":  msg,
			"body":         string(body),
		})
}

// AuthorizationAbandoned reports that the interactive consent step produced no usable code.
func AuthorizationAbandoned(reason string, source error) error {
	message := "authorization abandoned: " + reason
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, goerrors.CategoryAuth)
	} else {
		err = goerrors.Wrap(source, goerrors.CategoryAuth, message)
	}
	return err.WithCode(http.StatusUnauthorized).WithTextCode(CodeAuthorizationAbandoned)
}

// ConcurrentRequestRejected reports a publish started while another one holds the in-flight flag.
func ConcurrentRequestRejected() error {
	return goerrors.New("a publish request is already in progress", goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(CodeConcurrentRequestRejected)
}

// BadInput reports invalid caller input.
func BadInput(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(CodeBadInput)
}

// Is reports whether any envelope in err's chain carries textCode.
func Is(err error, textCode string) bool {
	for err != nil {
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			return false
		}
		if rich.TextCode == textCode {
			return true
		}
		err = errors.Unwrap(rich)
	}
	return false
}

// Envelope returns the outermost go-errors envelope in err's chain.
func Envelope(err error) (*goerrors.Error, bool) {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich, true
	}
	return nil, false
}

// StatusCode maps err to the HTTP status the action API replies with.
func StatusCode(err error) int {
	if rich, ok := Envelope(err); ok && rich.Code != 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}

// UserMessage renders err for display to an end user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if rich, ok := Envelope(err); ok && rich.TextCode == CodeTransportFailure {
		if status, ok := rich.Metadata["status"].(int); ok && status != 0 {
			return fmt.Sprintf("server error (%d): %s", status, http.StatusText(status))
		}
		return "network connection failed, check your network settings: " + err.Error()
	}
	return err.Error()
}
