package shopping

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeQuery(t *testing.T) {
	q, err := NormalizeQuery("  wireless mouse \n")
	if err != nil {
		t.Fatalf("NormalizeQuery: %v", err)
	}
	if q != "wireless mouse" {
		t.Errorf("q = %q, want %q", q, "wireless mouse")
	}

	for _, raw := range []string{"", "   ", "\t\n"} {
		if _, err := NormalizeQuery(raw); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("NormalizeQuery(%q) error = %v, want ErrEmptyQuery", raw, err)
		}
	}
}

func TestSearchPromptEmbedsQuery(t *testing.T) {
	p := BuildSearchPrompt("wireless mouse")

	if !strings.Contains(p, `"wireless mouse"`) {
		t.Error("prompt does not contain the literal query")
	}
	if !strings.Contains(p, "shopping assistant") {
		t.Error("prompt does not state the assistant role")
	}
	if !strings.Contains(p, "multiple sellers") {
		t.Error("prompt does not require multi-seller comparison")
	}
	for _, field := range []string{`"summary"`, `"products"`, `"imageSearch"`, `"highlights"`, `"recommendation"`} {
		if !strings.Contains(p, field) {
			t.Errorf("prompt schema missing %s", field)
		}
	}
}

func TestSearchPromptKeepsPercentSigns(t *testing.T) {
	p := BuildSearchPrompt("50% off headphones")
	if !strings.Contains(p, `"50% off headphones"`) {
		t.Errorf("query was altered: %q", p[:120])
	}
}

func TestImagePrompt(t *testing.T) {
	p := BuildImagePrompt("Logitech MX Master 3S")
	if !strings.Contains(p, `"Logitech MX Master 3S"`) {
		t.Error("image prompt does not contain the lookup query")
	}
	if !strings.Contains(p, "ONLY the image URL") {
		t.Error("image prompt does not restrict the output")
	}
}
