// Package token parses the guest[@label] tokens accepted by the
// snapshot, rollback, clone, and image commands. All of them share this
// one parser so they reject malformed input the same way.
package token

import (
	"fmt"
	"strings"

	"vmstor/src/errdefs"
)

// Token is a parsed guest[@label] argument.
// Example: web1@20240101150405 or just web1.
type Token struct {
	// Raw is the original input string.
	Raw string
	// Name is the guest name before the first "@".
	Name string
	// Label is the snapshot label after the first "@", if present.
	Label string
	// HasLabel distinguishes "guest" from "guest@" style input.
	HasLabel bool
}

// Parse splits a token on its first "@". The guest name must be
// non-empty; the label may be absent.
func Parse(raw string) (Token, error) {
	t := Token{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return t, fmt.Errorf("%w: empty token, expected guest[@label]", errdefs.ErrInvalidSnapshotToken)
	}
	name, label, found := strings.Cut(s, "@")
	if name == "" {
		return t, fmt.Errorf("%w: %q has no guest name", errdefs.ErrInvalidSnapshotToken, raw)
	}
	t.Name = name
	if found {
		if label == "" {
			return t, fmt.Errorf("%w: %q has an empty label", errdefs.ErrInvalidSnapshotToken, raw)
		}
		t.Label = label
		t.HasLabel = true
	}
	return t, nil
}

// ParseWithLabel is Parse with the label made mandatory, for operations
// like rollback that cannot default it.
func ParseWithLabel(raw string) (Token, error) {
	t, err := Parse(raw)
	if err != nil {
		return t, err
	}
	if !t.HasLabel {
		return t, fmt.Errorf("%w: %q is missing a @label", errdefs.ErrInvalidSnapshotToken, raw)
	}
	return t, nil
}

// String returns the canonical guest@label form.
func (t Token) String() string {
	if t.HasLabel {
		return fmt.Sprintf("%s@%s", t.Name, t.Label)
	}
	return t.Name
}
