package token_test

import (
	"errors"
	"testing"

	"vmstor/src/errdefs"
	"vmstor/src/token"
)

func TestParse_NameAndLabel(t *testing.T) {
	got, err := token.Parse("web1@nightly")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got.Name != "web1" || got.Label != "nightly" || !got.HasLabel {
		t.Fatalf("got %+v, want name=web1 label=nightly", got)
	}
}

func TestParse_NameOnly(t *testing.T) {
	got, err := token.Parse("web1")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got.Name != "web1" || got.HasLabel {
		t.Fatalf("got %+v, want name=web1 without label", got)
	}
}

func TestParse_LabelKeepsLaterSeparators(t *testing.T) {
	got, err := token.Parse("web1@a@b")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got.Name != "web1" || got.Label != "a@b" {
		t.Fatalf("got %+v, want split on first @ only", got)
	}
}

func TestParse_Rejected(t *testing.T) {
	for _, raw := range []string{"", "@nightly", "@", "web1@", "   "} {
		if _, err := token.Parse(raw); !errors.Is(err, errdefs.ErrInvalidSnapshotToken) {
			t.Fatalf("Parse(%q) = %v, want ErrInvalidSnapshotToken", raw, err)
		}
	}
}

func TestParseWithLabel_RequiresLabel(t *testing.T) {
	if _, err := token.ParseWithLabel("web1"); !errors.Is(err, errdefs.ErrInvalidSnapshotToken) {
		t.Fatalf("expected ErrInvalidSnapshotToken, got %v", err)
	}
	got, err := token.ParseWithLabel("web1@nightly")
	if err != nil {
		t.Fatalf("ParseWithLabel error: %v", err)
	}
	if got.String() != "web1@nightly" {
		t.Fatalf("String() = %q", got.String())
	}
}
