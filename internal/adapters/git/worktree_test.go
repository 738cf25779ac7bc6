package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/flock-cli/flock/internal/core"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("writing README: %v", err)
	}
	run("add", "README.md")
	run("commit", "-m", "initial commit")
	return dir
}

func TestWorktreeManagerCreateIsIdempotent(t *testing.T) {
	repo := initTestRepo(t)
	client, err := NewClient(repo)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	base := filepath.Join(repo, "..", "worktrees")
	mgr := NewWorktreeManager(client, base)

	path1, err := mgr.Create(context.Background(), "feature/foo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := os.Stat(path1); err != nil {
		t.Fatalf("expected worktree dir to exist: %v", err)
	}
	if filepath.Base(path1) != "feature-foo" {
		t.Errorf("expected dir name 'feature-foo', got %q", filepath.Base(path1))
	}

	path2, err := mgr.Create(context.Background(), "feature/foo")
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if path1 != path2 {
		t.Errorf("expected idempotent path, got %q then %q", path1, path2)
	}
}

func TestWorktreeManagerRemove(t *testing.T) {
	repo := initTestRepo(t)
	client, err := NewClient(repo)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	base := filepath.Join(repo, "..", "worktrees")
	mgr := NewWorktreeManager(client, base)

	path, err := mgr.Create(context.Background(), "feature/bar")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := mgr.Remove(context.Background(), path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected worktree directory to be gone")
	}
}

func TestWorktreeManagerGetStatusClean(t *testing.T) {
	repo := initTestRepo(t)
	client, err := NewClient(repo)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	base := filepath.Join(repo, "..", "worktrees")
	mgr := NewWorktreeManager(client, base)

	path, err := mgr.Create(context.Background(), "feature/baz")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	status, err := mgr.GetStatus(context.Background(), path, "main")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !status.IsClean {
		t.Errorf("expected clean status, got %+v", status)
	}
	if status.DivergenceFromMain != 0 {
		t.Errorf("expected zero divergence right after branching, got %d", status.DivergenceFromMain)
	}
}

func TestWorktreeManagerCreateSymlinks(t *testing.T) {
	repo := initTestRepo(t)
	if err := os.WriteFile(filepath.Join(repo, ".env"), []byte("SECRET=1\n"), 0o644); err != nil {
		t.Fatalf("writing .env: %v", err)
	}
	client, err := NewClient(repo)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	base := filepath.Join(repo, "..", "worktrees")
	mgr := NewWorktreeManager(client, base)

	path, err := mgr.Create(context.Background(), "feature/env")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := mgr.CreateSymlinks(path, []string{".env"}); err != nil {
		t.Fatalf("CreateSymlinks: %v", err)
	}

	linkPath := filepath.Join(path, ".env")
	fi, err := os.Lstat(linkPath)
	if err != nil {
		t.Fatalf("expected symlink at %s: %v", linkPath, err)
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		t.Errorf("expected %s to be a symlink", linkPath)
	}

	content, err := os.ReadFile(linkPath)
	if err != nil {
		t.Fatalf("reading through symlink: %v", err)
	}
	if string(content) != "SECRET=1\n" {
		t.Errorf("unexpected content through symlink: %q", content)
	}
}

func TestWorktreeManagerListIncludesMain(t *testing.T) {
	repo := initTestRepo(t)
	client, err := NewClient(repo)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	base := filepath.Join(repo, "..", "worktrees")
	mgr := NewWorktreeManager(client, base)

	if _, err := mgr.Create(context.Background(), "feature/listed"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	worktrees, err := mgr.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(worktrees) < 2 {
		t.Fatalf("expected at least main + one worktree, got %d", len(worktrees))
	}

	var sawMain bool
	for _, wt := range worktrees {
		if wt.IsMain {
			sawMain = true
		}
	}
	if !sawMain {
		t.Errorf("expected one worktree entry flagged IsMain")
	}
}

// setupRepoWithRemote clones the seed repo so "origin" exists and merges
// against origin/main behave like a real checkout.
func setupRepoWithRemote(t *testing.T) (clone string, origin string) {
	t.Helper()
	origin = initTestRepo(t)
	clone = filepath.Join(t.TempDir(), "clone")
	cmd := exec.Command("git", "clone", origin, clone)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git clone: %v: %s", err, out)
	}
	runIn(t, clone, "config", "user.email", "test@example.com")
	runIn(t, clone, "config", "user.name", "Test")
	return clone, origin
}

func runIn(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v in %s: %v: %s", args, dir, err, out)
	}
}

func TestMergeMainReportsConflict(t *testing.T) {
	clone, origin := setupRepoWithRemote(t)
	client, err := NewClient(clone)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	mgr := NewWorktreeManager(client, filepath.Join(clone, "..", "worktrees"))

	wt, err := mgr.Create(context.Background(), "feature/conflict")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Divergent edits to the same line on main (via origin) and the branch.
	if err := os.WriteFile(filepath.Join(origin, "README.md"), []byte("upstream change\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runIn(t, origin, "commit", "-am", "upstream edit")

	if err := os.WriteFile(filepath.Join(wt, "README.md"), []byte("branch change\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runIn(t, wt, "config", "user.email", "test@example.com")
	runIn(t, wt, "config", "user.name", "Test")
	runIn(t, wt, "commit", "-am", "branch edit")

	err = mgr.MergeMain(context.Background(), wt, "main")
	if err == nil {
		t.Fatal("expected a merge conflict error")
	}
	if !core.IsCategory(err, core.ErrCatConflict) {
		t.Fatalf("expected conflict category, got %v", err)
	}

	// The worktree is left intact for manual resolution, and fetch still
	// works afterwards.
	if _, statErr := os.Stat(wt); statErr != nil {
		t.Fatalf("worktree should survive a conflict: %v", statErr)
	}
	runIn(t, wt, "merge", "--abort")
	if err := mgr.Fetch(context.Background(), wt); err != nil {
		t.Fatalf("fetch after conflict: %v", err)
	}
}

func TestMergeMainCleanMerge(t *testing.T) {
	clone, origin := setupRepoWithRemote(t)
	client, err := NewClient(clone)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	mgr := NewWorktreeManager(client, filepath.Join(clone, "..", "worktrees"))

	wt, err := mgr.Create(context.Background(), "feature/clean")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := os.WriteFile(filepath.Join(origin, "NEW.md"), []byte("fresh file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runIn(t, origin, "add", "NEW.md")
	runIn(t, origin, "commit", "-m", "add NEW.md")

	if err := mgr.MergeMain(context.Background(), wt, "main"); err != nil {
		t.Fatalf("MergeMain: %v", err)
	}
	if _, err := os.Stat(filepath.Join(wt, "NEW.md")); err != nil {
		t.Fatalf("merged file missing: %v", err)
	}
}
