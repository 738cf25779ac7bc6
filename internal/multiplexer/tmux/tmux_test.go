package tmux

import "testing"

func TestStripANSI(t *testing.T) {
	in := "\x1b[32mhello\x1b[0m world"
	want := "hello world"
	if got := stripANSI(in); got != want {
		t.Errorf("stripANSI(%q) = %q, want %q", in, got, want)
	}
}

func TestNewDefaultsToTmuxOnPath(t *testing.T) {
	tm := New("")
	if tm.bin != "tmux" {
		t.Errorf("expected default binary 'tmux', got %q", tm.bin)
	}
}
