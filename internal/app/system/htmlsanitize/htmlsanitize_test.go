package htmlsanitize_test

import (
	"strings"
	"testing"

	"github.com/dalemusser/sharedcart/internal/app/system/htmlsanitize"
)

func TestPlainText_Empty(t *testing.T) {
	if got := htmlsanitize.PlainText(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestPlainText_Unchanged(t *testing.T) {
	input := "Love this chair, but is it too wide?"
	if got := htmlsanitize.PlainText(input); got != input {
		t.Errorf("expected plain text unchanged, got %q", got)
	}
}

func TestPlainText_StripsTags(t *testing.T) {
	got := htmlsanitize.PlainText("<b>Nice</b> chair")
	if got != "Nice chair" {
		t.Errorf("expected tags stripped, got %q", got)
	}
}

func TestPlainText_RemovesScript(t *testing.T) {
	got := htmlsanitize.PlainText("<script>alert('xss')</script>ok")
	if strings.Contains(got, "alert") {
		t.Errorf("expected script content removed, got %q", got)
	}
	if got != "ok" {
		t.Errorf("expected %q, got %q", "ok", got)
	}
}

func TestPlainText_KeepsAmpersand(t *testing.T) {
	got := htmlsanitize.PlainText("Oak & walnut")
	if got != "Oak & walnut" {
		t.Errorf("expected ampersand preserved, got %q", got)
	}
}

func TestPlainText_OnlyMarkupBecomesEmpty(t *testing.T) {
	if got := htmlsanitize.PlainText("  <p> </p>  "); got != "" {
		t.Errorf("expected empty after stripping, got %q", got)
	}
}

func TestIsPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"5 < 10", true},
		{"5 > 3", true},
		{"<p>Hello</p>", false},
	}
	for _, tt := range tests {
		if got := htmlsanitize.IsPlainText(tt.in); got != tt.want {
			t.Errorf("IsPlainText(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
