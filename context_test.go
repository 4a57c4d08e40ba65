package courier

import (
	"testing"

	"github.com/google/uuid"
)

func TestFreezeContextNormalizesThroughJSON(t *testing.T) {
	frozen, err := freezeContext(Context{
		"count":  3,
		"name":   "John",
		"nested": map[string]any{"ok": true},
	})
	if err != nil {
		t.Fatalf("freezeContext: %v", err)
	}
	if _, ok := frozen["count"].(float64); !ok {
		t.Fatalf("numbers must come back as float64, got %T", frozen["count"])
	}
	if frozen["name"] != "John" {
		t.Fatalf("name = %v", frozen["name"])
	}
	nested, ok := frozen["nested"].(map[string]any)
	if !ok || nested["ok"] != true {
		t.Fatalf("nested = %#v", frozen["nested"])
	}
}

func TestFreezeContextNil(t *testing.T) {
	frozen, err := freezeContext(nil)
	if err != nil {
		t.Fatalf("freezeContext: %v", err)
	}
	if frozen == nil || len(frozen) != 0 {
		t.Fatalf("expected an empty context, got %#v", frozen)
	}
}

func TestFreezeContextRejectsUnserializable(t *testing.T) {
	if _, err := freezeContext(Context{"ch": make(chan int)}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestMessageLinks(t *testing.T) {
	id := uuid.MustParse("2c3e4b5a-1f2d-4e6f-8a9b-0c1d2e3f4a5b")

	email := &Email{ID: id}
	if got := email.LinkHTML(); got != "/email/2c3e4b5a-1f2d-4e6f-8a9b-0c1d2e3f4a5b.html" {
		t.Fatalf("LinkHTML = %q", got)
	}
	if got := email.LinkText(); got != "/email/2c3e4b5a-1f2d-4e6f-8a9b-0c1d2e3f4a5b.txt" {
		t.Fatalf("LinkText = %q", got)
	}

	sms := &Sms{ID: id}
	if got := sms.Link(); got != "/sms/2c3e4b5a-1f2d-4e6f-8a9b-0c1d2e3f4a5b" {
		t.Fatalf("Link = %q", got)
	}
}
