package branchname

import "testing"

func TestSanitizeBasic(t *testing.T) {
	cases := map[string]string{
		"space in name":       "space-in-name",
		"  space  in  name  ": "space-in-name",
		"Space In Name":       "space-in-name",
		"single":              "single",
		"   ":                 "",
		"fix - auth bug":      "fix-auth-bug",
		"fix -- auth --- bug": "fix-auth-bug",
		"- leading dash":      "leading-dash",
		"trailing dash -":     "trailing-dash",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeTruncatesOnWordBoundary(t *testing.T) {
	long := "Fix the bug that causes really long branch names to break everything in the system"
	got := Sanitize(long)
	if len(got) > MaxLength {
		t.Fatalf("result exceeds MaxLength: %q (%d)", got, len(got))
	}
	want := "fix-the-bug-that-causes-really-long-branch-names"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{"Space In Name", "already-sanitized", "A Very Long Title That Goes On And On And On Past The Limit"}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize not idempotent for %q: %q vs %q", in, once, twice)
		}
		if len(once) > MaxLength {
			t.Errorf("Sanitize(%q) exceeds MaxLength", in)
		}
	}
}

func TestSanitizeLinear(t *testing.T) {
	cases := []struct{ user, id, title, want string }{
		{"ziim", "GRE-23", "Linear Git Integration", "ziim/gre-23-linear-git-integration"},
		{"JohnDoe", "ABC-456", "Some Task Name HERE", "JohnDoe/abc-456-some-task-name-here"},
		{"ziim", "GRE-30", "Create helper/utils section for reused code", "ziim/gre-30-create-helperutils-section-for-reused"},
		{"ziim", "GRE-30", "Create helper/utils section for reused code.", "ziim/gre-30-create-helperutils-section-for-reused"},
		{"ziim", "GRE-31", "Fix this bug, please?!", "ziim/gre-31-fix-this-bug-please"},
	}
	for _, c := range cases {
		got := SanitizeLinear(c.user, c.id, c.title)
		if got != c.want {
			t.Errorf("SanitizeLinear(%q,%q,%q) = %q, want %q", c.user, c.id, c.title, got, c.want)
		}
	}
}

func TestSanitizeLinearTruncatesButPreservesIdentifier(t *testing.T) {
	got := SanitizeLinear("user", "ABC-123", "This is a very long task title that needs to be truncated properly")
	if len(got) > MaxLength {
		t.Fatalf("result exceeds MaxLength: %q (%d)", got, len(got))
	}
	want := "user/abc-123-"
	if len(got) < len(want) || got[:len(want)] != want {
		t.Errorf("expected prefix %q, got %q", want, got)
	}
}

func TestToWorktreeDir(t *testing.T) {
	if got := ToWorktreeDir("feature/x"); got != "feature-x" {
		t.Errorf("got %q", got)
	}
}
