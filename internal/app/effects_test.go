package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flock-cli/flock/internal/core"
)

func TestTaskIDFromRef(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"bare id", "1209188979399393", "1209188979399393"},
		{"linear url", "https://linear.app/acme/issue/ENG-123/fix-the-thing", "ENG-123"},
		{"asana url", "https://app.asana.com/0/1200/1209188979399393/", "1209188979399393"},
		{"notion url", "https://www.notion.so/acme/Fix-login-0123456789abcdef0123456789abcdef", "0123456789abcdef0123456789abcdef"},
		{"whitespace trimmed", "  ENG-42  ", "ENG-42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, taskIDFromRef(tt.ref))
		})
	}
}

func TestBranchFor(t *testing.T) {
	e := &effects{branchPrefix: "agents/", pmProvider: core.PMLinear, linearUser: "dev"}

	// Free-form names go through the sanitizer and get the prefix.
	assert.Equal(t, "agents/fix-the-login-bug", e.branchFor("x", "Fix the Login Bug", ""))

	// Well-formed refs keep their shape (prefix still applies).
	assert.Equal(t, "agents/feature/auth", e.branchFor("x", "feature/auth", ""))

	// An already-prefixed branch is not double-prefixed.
	assert.Equal(t, "agents/feature/auth", e.branchFor("x", "agents/feature/auth", ""))

	// Linear issue refs use the user/identifier-slug convention.
	got := e.branchFor("Fix the login bug", "whatever", "ENG-123")
	assert.Equal(t, "dev/eng-123-fix-the-login-bug", got)
	assert.LessOrEqual(t, len(got), 50+len("dev/"))
}

func TestLinkForProvider(t *testing.T) {
	task := core.PmTaskSummary{ID: "42", Name: "Fix auth", URL: "https://x", StatusName: "Todo", IsSubtask: true}

	link := linkForProvider(core.PMLinear, task)
	assert.Equal(t, core.PmLinear, link.Kind)
	if assert.NotNil(t, link.Linear) {
		assert.Equal(t, "42", link.Linear.ID)
		assert.True(t, link.Linear.IsSubtask)
	}

	link = linkForProvider(core.PMAsana, task)
	assert.Equal(t, core.PmAsana, link.Kind)
	assert.NotNil(t, link.Asana)

	link = linkForProvider("", task)
	assert.Equal(t, core.PmNone, link.Kind)
	assert.Nil(t, link.Payload())
}
