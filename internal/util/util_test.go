package util

import (
	"strings"
	"testing"
)

func TestMaskSensitiveQuery(t *testing.T) {
	got := MaskSensitiveQuery("limit=5&token=eyJhbGciOiJIUzI1NiJ9.payload.sig")
	if strings.Contains(got, "payload") {
		t.Fatalf("token not masked: %q", got)
	}
	if !strings.HasPrefix(got, "limit=5&token=eyJh") {
		t.Fatalf("masked = %q", got)
	}
	if got := MaskSensitiveQuery("limit=10&unread=true"); got != "limit=10&unread=true" {
		t.Fatalf("untouched query changed: %q", got)
	}
	if got := MaskSensitiveQuery(""); got != "" {
		t.Fatalf("empty = %q", got)
	}
}

func TestHideSecret(t *testing.T) {
	if got := HideSecret("abcdefghijkl"); got != "abcd...ijkl" {
		t.Fatalf("long = %q", got)
	}
	if got := HideSecret("ab"); got != "ab" {
		t.Fatalf("short = %q", got)
	}
}
