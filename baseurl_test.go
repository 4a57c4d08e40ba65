package courier

import (
	"context"
	"errors"
	"testing"
)

func TestResolveBaseURL(t *testing.T) {
	sites := []Site{
		{ID: "local", Domain: "localhost:8000"},
		{ID: "ip", Domain: "127.0.0.1:8000"},
		{ID: "prod", Domain: "example.org", Default: true},
	}

	tests := []struct {
		name       string
		configured string
		siteID     string
		want       string
	}{
		{"configured wins", "https://static.example.com", "local", "https://static.example.com"},
		{"localhost keeps port", "", "local", "http://localhost:8000"},
		{"loopback ip keeps port", "", "ip", "http://127.0.0.1:8000"},
		{"plain domain", "", "prod", "https://example.org"},
		{"default site", "", "", "https://example.org"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveBaseURL(tc.configured, sites, tc.siteID)
			if err != nil {
				t.Fatalf("ResolveBaseURL: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveBaseURLNothingToGoOn(t *testing.T) {
	if _, err := ResolveBaseURL("", nil, ""); !errors.Is(err, ErrTemplate) {
		t.Fatalf("expected ErrTemplate, got %v", err)
	}
	if _, err := ResolveBaseURL("", []Site{{ID: "a", Domain: "a.org"}}, "missing"); !errors.Is(err, ErrTemplate) {
		t.Fatalf("expected ErrTemplate, got %v", err)
	}
}

func TestAbsolute(t *testing.T) {
	tests := []struct {
		base string
		ref  string
		want string
	}{
		{"https://example.org", "/path", "https://example.org/path"},
		{"https://example.org/sub/", "img.png", "https://example.org/sub/img.png"},
		{"https://example.org", "https://other.org/x", "https://other.org/x"},
		{"http://localhost:8000", "/email/abc.html", "http://localhost:8000/email/abc.html"},
	}
	for _, tc := range tests {
		got, err := Absolute(tc.base, tc.ref)
		if err != nil {
			t.Fatalf("Absolute(%q, %q): %v", tc.base, tc.ref, err)
		}
		if got != tc.want {
			t.Fatalf("Absolute(%q, %q) = %q, want %q", tc.base, tc.ref, got, tc.want)
		}
	}
}

func TestMakeAbsoluteNeedsRenderingContext(t *testing.T) {
	if _, err := MakeAbsolute(context.Background(), "/x"); !errors.Is(err, ErrTemplate) {
		t.Fatalf("expected ErrTemplate, got %v", err)
	}

	ctx := withBaseURL(context.Background(), func(context.Context) (string, error) {
		return "https://example.org", nil
	})
	got, err := MakeAbsolute(ctx, "/x")
	if err != nil {
		t.Fatalf("MakeAbsolute: %v", err)
	}
	if got != "https://example.org/x" {
		t.Fatalf("got %q", got)
	}
}
