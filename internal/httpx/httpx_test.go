package httpx

import (
	"net/url"
	"strings"
	"testing"
)

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(strings.NewReader(`{"name":"a","extra":1}`), &v); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if err := DecodeJSON(strings.NewReader(`{"name":"a"}{"name":"b"}`), &v); err == nil {
		t.Fatalf("expected trailing object error")
	}
	if err := DecodeJSON(strings.NewReader(`{"name":"a"}`), &v); err != nil || v.Name != "a" {
		t.Fatalf("unexpected decode result: %v %q", err, v.Name)
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"", 20, false},
		{"5", 5, false},
		{"500", 100, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"ten", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseLimit(url.Values{"limit": {tc.raw}}, 20, 100)
		if (err != nil) != tc.wantErr {
			t.Fatalf("limit %q: unexpected error %v", tc.raw, err)
		}
		if !tc.wantErr && got != tc.want {
			t.Fatalf("limit %q: expected %d, got %d", tc.raw, tc.want, got)
		}
	}
}

func TestParseDuration(t *testing.T) {
	if d, err := ParseDuration("", 45); err != nil || d != 45 {
		t.Fatalf("expected fallback 45, got %d %v", d, err)
	}
	if d, err := ParseDuration("30", 45); err != nil || d != 30 {
		t.Fatalf("expected 30, got %d %v", d, err)
	}
	for _, raw := range []string{"0", "-15", "abc", "1000"} {
		if _, err := ParseDuration(raw, 45); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
