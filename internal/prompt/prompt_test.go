package prompt

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestTerminalConfirm(t *testing.T) {
	cases := map[string]bool{
		"y\n":    true,
		"yes\n":  true,
		"Y\n":    true,
		"n\n":    false,
		"no\n":   false,
		"\n":     false,
		"maybe\n": false,
	}
	for input, want := range cases {
		var out bytes.Buffer
		term := &Terminal{In: strings.NewReader(input), Out: &out}
		got, err := term.Confirm(context.Background(), "Delete hotel 5?")
		if err != nil {
			t.Fatalf("confirm(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("confirm(%q) = %v, want %v", input, got, want)
		}
		if !strings.Contains(out.String(), "Delete hotel 5?") {
			t.Fatalf("question not written to out: %q", out.String())
		}
	}
}

func TestAlways(t *testing.T) {
	ok, err := Always.Confirm(context.Background(), "anything")
	if err != nil || !ok {
		t.Fatalf("Always = %v, %v", ok, err)
	}
}
