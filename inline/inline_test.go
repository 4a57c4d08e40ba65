package inline

import (
	"strings"
	"testing"
)

func TestInlineMovesStylesOntoElements(t *testing.T) {
	in := `<html><head><style>h1 { color: red; }</style></head><body><h1>Hello</h1></body></html>`

	out, err := New().Inline(in)
	if err != nil {
		t.Fatalf("Inline: %v", err)
	}
	if !strings.Contains(out, `style="color:red`) {
		t.Fatalf("styles not inlined: %q", out)
	}
	if !strings.Contains(out, "Hello") {
		t.Fatalf("content lost: %q", out)
	}
}

func TestInlineKeepsPlainDocuments(t *testing.T) {
	out, err := New().Inline(`<p>No styles here</p>`)
	if err != nil {
		t.Fatalf("Inline: %v", err)
	}
	if !strings.Contains(out, "No styles here") {
		t.Fatalf("content lost: %q", out)
	}
}
