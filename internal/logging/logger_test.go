package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetOutputRedirects(t *testing.T) {
	var a, b bytes.Buffer
	l := NewLogger(&a)
	l.Info().Msg("first")
	l.SetOutput(&b)
	l.Info().Msg("second")

	if !strings.Contains(a.String(), "first") {
		t.Errorf("first writer = %q, want it to contain %q", a.String(), "first")
	}
	if strings.Contains(a.String(), "second") {
		t.Errorf("first writer received message after SetOutput: %q", a.String())
	}
	if !strings.Contains(b.String(), "second") {
		t.Errorf("second writer = %q, want it to contain %q", b.String(), "second")
	}
	if l.Output() != &b {
		t.Error("Output() did not return the new writer")
	}
}

func TestNamedAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf).Named("resolver")
	l.Warnf("skipped %s", "docs/")

	out := buf.String()
	if !strings.Contains(out, "resolver") || !strings.Contains(out, "skipped docs/") {
		t.Errorf("output = %q, want component and message", out)
	}
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	if l == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	// must not panic
	l.Info().Msg("discarded")

	own := Nop()
	if OrNop(own) != own {
		t.Error("OrNop should return a non-nil logger unchanged")
	}
}
