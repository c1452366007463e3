package safety_test

import (
	"bytes"
	"strings"
	"testing"

	"vmstor/src/safety"
)

func TestConfirm_DryRunDeclinesAndReportsAction(t *testing.T) {
	var out bytes.Buffer
	ok, err := safety.Confirm(safety.Options{DryRun: true, Yes: true}, strings.NewReader("y\n"), &out, "Destroy dataset web1?")
	if err != nil || ok {
		t.Fatalf("dry-run should decline without error, got ok=%v err=%v", ok, err)
	}
	if got := out.String(); !strings.Contains(got, "dry-run: Destroy dataset web1?") {
		t.Fatalf("planned action not reported: %q", got)
	}
}

func TestConfirm_YesSkipsPrompt(t *testing.T) {
	var out bytes.Buffer
	ok, err := safety.Confirm(safety.Options{Yes: true}, strings.NewReader(""), &out, "Destroy?")
	if err != nil || !ok {
		t.Fatalf("yes should agree without error, got ok=%v err=%v", ok, err)
	}
	if out.Len() != 0 {
		t.Fatalf("yes should not prompt, wrote %q", out.String())
	}
}

func TestConfirm_ReadsAnswer(t *testing.T) {
	var out bytes.Buffer
	ok, err := safety.Confirm(safety.Options{}, strings.NewReader("yes\n"), &out, "Destroy?")
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
	if !strings.Contains(out.String(), "[y/N]") {
		t.Fatalf("prompt missing: %q", out.String())
	}

	ok, err = safety.Confirm(safety.Options{}, strings.NewReader("\n"), &out, "Destroy?")
	if err != nil || ok {
		t.Fatalf("empty answer should decline, got ok=%v err=%v", ok, err)
	}
}
