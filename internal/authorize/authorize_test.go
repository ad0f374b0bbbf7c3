package authorize

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"webclip/internal/apperr"
	"webclip/internal/config"
)

const testRedirect = "http://127.0.0.1:8765/callback"

func TestParseRedirect(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     string
		wantFail string
	}{
		{name: "valid", raw: testRedirect + "?code=abc&state=s1", want: "abc"},
		{name: "trailing slash", raw: testRedirect + "/?code=abc&state=s1", want: "abc"},
		{name: "state mismatch", raw: testRedirect + "?code=abc&state=evil", wantFail: "state mismatch"},
		{name: "missing state", raw: testRedirect + "?code=abc", wantFail: "state mismatch"},
		{name: "other host", raw: "http://example.com/callback?code=abc&state=s1", wantFail: "expected"},
		{name: "other path", raw: "http://127.0.0.1:8765/elsewhere?code=abc&state=s1", wantFail: "expected"},
		{name: "provider error", raw: testRedirect + "?error=access_denied&state=s1", wantFail: "access_denied"},
		{name: "no code", raw: testRedirect + "?state=s1", wantFail: "no code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRedirect(tt.raw, testRedirect, "s1")
			if tt.wantFail != "" {
				if !apperr.Is(err, apperr.CodeAuthorizationAbandoned) {
					t.Fatalf("error = %v, want authorization abandoned", err)
				}
				if !strings.Contains(err.Error(), tt.wantFail) {
					t.Errorf("error %q does not mention %q", err, tt.wantFail)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRedirect() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("code = %q, want %q", got, tt.want)
			}
		})
	}
}

func freeRedirect(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return "http://" + addr + "/callback"
}

func loopbackConfig(redirect string, timeout time.Duration) config.AuthConfig {
	return config.AuthConfig{
		Strategy:    config.StrategyLoopback,
		RedirectURI: redirect,
		State:       "s1",
		Timeout:     timeout,
	}
}

func TestLoopback_ReceivesCode(t *testing.T) {
	redirect := freeRedirect(t)
	l := NewLoopback(loopbackConfig(redirect, 5*time.Second), zerolog.Nop())

	var opened string
	statuses := make(chan int, 1)
	l.Open = func(authURL string) error {
		opened = authURL
		go func() {
			resp, err := http.Get(redirect + "?code=abc&state=s1")
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
		return nil
	}

	code, err := l.Authorize(context.Background(), "https://open.feishu.cn/auth")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if code != "abc" {
		t.Errorf("code = %q, want abc", code)
	}
	if opened != "https://open.feishu.cn/auth" {
		t.Errorf("opened = %q", opened)
	}
	if status := <-statuses; status != http.StatusOK {
		t.Errorf("callback status = %d, want 200", status)
	}

	// The listener is gone once Authorize returns.
	if _, err := http.Get(redirect); err == nil {
		t.Error("callback listener still accepting connections")
	}
}

func TestLoopback_StateMismatch(t *testing.T) {
	redirect := freeRedirect(t)
	l := NewLoopback(loopbackConfig(redirect, 5*time.Second), zerolog.Nop())

	statuses := make(chan int, 1)
	l.Open = func(string) error {
		go func() {
			resp, err := http.Get(redirect + "?code=abc&state=forged")
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
		return nil
	}

	code, err := l.Authorize(context.Background(), "https://open.feishu.cn/auth")
	if !apperr.Is(err, apperr.CodeAuthorizationAbandoned) {
		t.Fatalf("error = %v, want authorization abandoned", err)
	}
	if code != "" {
		t.Errorf("code = %q, want empty", code)
	}
	if status := <-statuses; status != http.StatusBadRequest {
		t.Errorf("callback status = %d, want 400", status)
	}
}

func TestLoopback_Timeout(t *testing.T) {
	l := NewLoopback(loopbackConfig(freeRedirect(t), 50*time.Millisecond), zerolog.Nop())
	l.Open = func(string) error { return nil }

	_, err := l.Authorize(context.Background(), "https://open.feishu.cn/auth")
	if !apperr.Is(err, apperr.CodeAuthorizationAbandoned) {
		t.Fatalf("error = %v, want authorization abandoned", err)
	}
}

func TestLoopback_Cancelled(t *testing.T) {
	l := NewLoopback(loopbackConfig(freeRedirect(t), time.Minute), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	l.Open = func(string) error {
		cancel()
		return nil
	}

	_, err := l.Authorize(ctx, "https://open.feishu.cn/auth")
	if !apperr.Is(err, apperr.CodeAuthorizationAbandoned) {
		t.Fatalf("error = %v, want authorization abandoned", err)
	}
}

func delegatedConfig(timeout time.Duration) config.AuthConfig {
	return config.AuthConfig{
		Strategy:    config.StrategyDelegated,
		RedirectURI: testRedirect,
		State:       "s1",
		Timeout:     timeout,
	}
}

func TestDelegated_PastedRedirect(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("\n  " + testRedirect + "?code=xyz&state=s1  \n")
	d := NewDelegated(delegatedConfig(time.Second), in, &out, zerolog.Nop())

	code, err := d.Authorize(context.Background(), "https://open.feishu.cn/auth?x=1")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if code != "xyz" {
		t.Errorf("code = %q, want xyz", code)
	}
	if !strings.Contains(out.String(), "https://open.feishu.cn/auth?x=1") {
		t.Errorf("prompt does not show the authorization url:\n%s", out.String())
	}
}

func TestDelegated_Failures(t *testing.T) {
	tests := []struct {
		name string
		in   io.Reader
	}{
		{name: "closed input", in: strings.NewReader("")},
		{name: "forged state", in: strings.NewReader(testRedirect + "?code=xyz&state=other\n")},
		{name: "timeout", in: blockingReader{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDelegated(delegatedConfig(50*time.Millisecond), tt.in, io.Discard, zerolog.Nop())
			_, err := d.Authorize(context.Background(), "https://open.feishu.cn/auth")
			if !apperr.Is(err, apperr.CodeAuthorizationAbandoned) {
				t.Fatalf("error = %v, want authorization abandoned", err)
			}
		})
	}
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}

func TestNew(t *testing.T) {
	b, err := New(loopbackConfig(testRedirect, time.Second), nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New(loopback) error = %v", err)
	}
	if _, ok := b.(*Loopback); !ok {
		t.Errorf("New(loopback) = %T", b)
	}

	b, err = New(delegatedConfig(time.Second), strings.NewReader(""), io.Discard, zerolog.Nop())
	if err != nil {
		t.Fatalf("New(delegated) error = %v", err)
	}
	if _, ok := b.(*Delegated); !ok {
		t.Errorf("New(delegated) = %T", b)
	}

	if _, err := New(config.AuthConfig{Strategy: "carrier-pigeon"}, nil, nil, zerolog.Nop()); err == nil {
		t.Error("New(unknown) error = nil")
	}
}

// promptSignal reports every prompt written by the delegated strategy.
type promptSignal chan struct{}

func (p promptSignal) Write(b []byte) (int, error) {
	p <- struct{}{}
	return len(b), nil
}

func TestDelegated_RetryAfterAbandonedAttempt(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	prompts := make(promptSignal, 2)
	d := NewDelegated(delegatedConfig(200*time.Millisecond), pr, prompts, zerolog.Nop())

	if _, err := d.Authorize(context.Background(), "https://open.feishu.cn/auth"); !apperr.Is(err, apperr.CodeAuthorizationAbandoned) {
		t.Fatalf("first attempt error = %v, want authorization abandoned", err)
	}
	<-prompts

	go func() {
		<-prompts
		_, _ = io.WriteString(pw, testRedirect+"?code=good&state=s1\n")
	}()

	code, err := d.Authorize(context.Background(), "https://open.feishu.cn/auth")
	if err != nil {
		t.Fatalf("second attempt error = %v", err)
	}
	if code != "good" {
		t.Errorf("code = %q, want good", code)
	}
}

func TestLoopback_IgnoresBareCallback(t *testing.T) {
	redirect := freeRedirect(t)
	l := NewLoopback(loopbackConfig(redirect, 5*time.Second), zerolog.Nop())

	bare := make(chan int, 1)
	l.Open = func(string) error {
		go func() {
			resp, err := http.Get(redirect)
			if err != nil {
				bare <- 0
				return
			}
			resp.Body.Close()
			bare <- resp.StatusCode

			resp, err = http.Get(redirect + "?code=abc&state=s1")
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}

	code, err := l.Authorize(context.Background(), "https://open.feishu.cn/auth")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if code != "abc" {
		t.Errorf("code = %q, want abc", code)
	}
	if status := <-bare; status != http.StatusBadRequest {
		t.Errorf("bare callback status = %d, want 400", status)
	}
}
