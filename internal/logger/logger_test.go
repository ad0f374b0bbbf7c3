package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONWithServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "info", Format: "json", Service: "webclip", Writer: &buf})
	named := Named(l, "publisher")
	named.Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["service"] != "webclip" {
		t.Errorf("service = %v", line["service"])
	}
	if line["component"] != "publisher" {
		t.Errorf("component = %v", line["component"])
	}
	if line["message"] != "hello" {
		t.Errorf("message = %v", line["message"])
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "error", Writer: &buf})
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Errorf("info line written at error level: %s", buf.String())
	}
}
