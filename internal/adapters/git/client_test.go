package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewClientRejectsNonRepo(t *testing.T) {
	_, err := NewClient(t.TempDir())
	if err == nil {
		t.Fatal("expected an error for a directory without .git")
	}
}

func TestCurrentBranchAndIsClean(t *testing.T) {
	repo := initTestRepo(t)
	client, err := NewClient(repo)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	branch, err := client.CurrentBranch(context.Background())
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("expected main, got %q", branch)
	}

	clean, err := client.IsClean(context.Background())
	if err != nil {
		t.Fatalf("IsClean: %v", err)
	}
	if !clean {
		t.Error("fresh repo should be clean")
	}

	if err := os.WriteFile(filepath.Join(repo, "dirty.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	clean, err = client.IsClean(context.Background())
	if err != nil {
		t.Fatalf("IsClean: %v", err)
	}
	if clean {
		t.Error("untracked file should make the repo dirty")
	}
}

func TestDefaultBranchFallsBackToLocalRef(t *testing.T) {
	repo := initTestRepo(t)
	client, err := NewClient(repo)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	// No remote is configured, so detection falls back to the local ref.
	branch, err := client.DefaultBranch(context.Background())
	if err != nil {
		t.Fatalf("DefaultBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("expected main, got %q", branch)
	}
}

func TestRemoteURL(t *testing.T) {
	clone, origin := setupRepoWithRemote(t)
	client, err := NewClient(clone)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	url, err := client.RemoteURL(context.Background())
	if err != nil {
		t.Fatalf("RemoteURL: %v", err)
	}
	if url != origin {
		t.Errorf("expected %q, got %q", origin, url)
	}
}

func TestCheckoutBranchValidatesName(t *testing.T) {
	repo := initTestRepo(t)
	client, err := NewClient(repo)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	for _, bad := range []string{"", "-flag", "has space", "a..b", "end/", "@"} {
		if err := client.CheckoutBranch(context.Background(), bad); err == nil {
			t.Errorf("expected validation error for %q", bad)
		}
	}
}

func TestParseStatusBranchHeader(t *testing.T) {
	out := "# branch.head feature/x\n# branch.upstream origin/feature/x\n# branch.ab +2 -1\n? new.txt"
	status := parseStatus(out)

	if status.Branch != "feature/x" {
		t.Errorf("branch: got %q", status.Branch)
	}
	if status.Ahead != 2 || status.Behind != 1 {
		t.Errorf("ahead/behind: got %d/%d", status.Ahead, status.Behind)
	}
	if len(status.Untracked) != 1 || status.Untracked[0] != "new.txt" {
		t.Errorf("untracked: got %v", status.Untracked)
	}
	if status.IsClean() {
		t.Error("status with untracked file should not be clean")
	}
}

func TestParseWorktreeList(t *testing.T) {
	out := `worktree /repo
HEAD abc123
branch refs/heads/main

worktree /wt/feature-x
HEAD def456
branch refs/heads/feature/x

worktree /wt/detached
HEAD 999999
detached
prunable`

	worktrees := parseWorktreeList(out, "/repo")
	if len(worktrees) != 3 {
		t.Fatalf("expected 3 worktrees, got %d", len(worktrees))
	}
	if !worktrees[0].IsMain || worktrees[0].Branch != "main" {
		t.Errorf("main worktree parsed wrong: %+v", worktrees[0])
	}
	if worktrees[1].Branch != "feature/x" {
		t.Errorf("branch worktree parsed wrong: %+v", worktrees[1])
	}
	if !worktrees[2].Detached || !worktrees[2].Prunable {
		t.Errorf("detached worktree parsed wrong: %+v", worktrees[2])
	}
}
