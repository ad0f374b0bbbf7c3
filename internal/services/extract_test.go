package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"webclip/internal/apperr"
)

func TestExtractHTML(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		wantTitle   string
		wantContent string
	}{
		{
			name:        "title and body",
			doc:         `<html><head><title> Hello World </title></head><body><h1>Hi</h1><p>text</p></body></html>`,
			wantTitle:   "Hello World",
			wantContent: "<h1>Hi</h1><p>text</p>",
		},
		{
			name:        "missing title",
			doc:         `<html><head></head><body><p>a</p></body></html>`,
			wantTitle:   "Untitled",
			wantContent: "<p>a</p>",
		},
		{
			name:        "blank title",
			doc:         `<html><head><title>   </title></head><body></body></html>`,
			wantTitle:   "Untitled",
			wantContent: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := ExtractHTML(strings.NewReader(tt.doc))
			if err != nil {
				t.Fatalf("ExtractHTML() error = %v", err)
			}
			if page.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", page.Title, tt.wantTitle)
			}
			if page.Content != tt.wantContent {
				t.Errorf("Content = %q, want %q", page.Content, tt.wantContent)
			}
		})
	}
}

func TestExtractor_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Page</title></head><body><p>body</p></body></html>`))
	}))
	defer srv.Close()

	e := NewExtractor(srv.Client(), zerolog.Nop())

	page, err := e.Extract(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if page.Title != "Page" || page.Content != "<p>body</p>" || page.URL != srv.URL+"/article" {
		t.Errorf("page = %+v", page)
	}

	_, err = e.Extract(context.Background(), srv.URL+"/missing")
	if !apperr.Is(err, apperr.CodeTransportFailure) {
		t.Fatalf("error = %v, want transport failure", err)
	}
	if got := apperr.UserMessage(err); got != "server error (404): Not Found" {
		t.Errorf("UserMessage() = %q", got)
	}

	if _, err := e.Extract(context.Background(), ""); !apperr.Is(err, apperr.CodeBadInput) {
		t.Errorf("empty url error = %v, want bad input", err)
	}
}

func TestConverter_Convert(t *testing.T) {
	c := NewConverter()

	md, err := c.Convert(`<h1>Hi</h1><ul><li>one</li><li>two</li></ul><hr/><pre><code>x := 1</code></pre>`)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	for _, want := range []string{"# Hi", "- one", "- two", "---", "```", "x := 1"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if !strings.HasSuffix(md, "\n") {
		t.Error("markdown has no trailing newline")
	}

	empty, err := c.Convert("")
	if err != nil || empty != "" {
		t.Errorf("Convert(\"\") = %q, %v", empty, err)
	}
}
