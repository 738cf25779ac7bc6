package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flock-cli/flock/internal/branchname"
	"github.com/flock-cli/flock/internal/core"
)

// Worktree describes a single entry from `git worktree list --porcelain`.
type Worktree struct {
	Path      string
	Branch    string
	Commit    string
	IsMain    bool
	Detached  bool
	Locked    bool
	Prunable  bool
	CreatedAt string
}

// WorktreeManager creates and tears down branch-named worktrees under a
// single base directory, and answers sync/diff questions about them.
type WorktreeManager struct {
	git     *Client
	baseDir string
}

// NewWorktreeManager builds a manager rooted at baseDir, using client for
// all git invocations against the main repository.
func NewWorktreeManager(client *Client, baseDir string) *WorktreeManager {
	return &WorktreeManager{git: client, baseDir: baseDir}
}

// pathForBranch maps a branch name to its worktree directory, replacing '/'
// with '-' the same way branchname.ToWorktreeDir does for new branches.
func (m *WorktreeManager) pathForBranch(branch string) string {
	return filepath.Join(m.baseDir, branchname.ToWorktreeDir(branch))
}

// Create ensures a worktree for branch exists and returns its path. It is
// idempotent: if the directory already exists, it is returned as-is without
// touching git. If the branch has no existing ref, one is created from HEAD.
func (m *WorktreeManager) Create(ctx context.Context, branch string) (string, error) {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("creating worktree base dir: %w", err)
	}

	worktreePath := m.pathForBranch(branch)
	if _, err := os.Stat(worktreePath); err == nil {
		return worktreePath, nil
	}

	if _, err := m.git.run(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch); err != nil {
		if _, cerr := m.git.run(ctx, "branch", branch); cerr != nil {
			return "", fmt.Errorf("creating branch %s: %w", branch, cerr)
		}
	}

	if _, err := m.git.run(ctx, "worktree", "add", worktreePath, branch); err != nil {
		return "", fmt.Errorf("creating worktree for %s: %w", branch, err)
	}

	return worktreePath, nil
}

// Remove prunes the worktree's git metadata and deletes its directory.
func (m *WorktreeManager) Remove(ctx context.Context, worktreePath string) error {
	_, _ = m.git.run(ctx, "worktree", "remove", "--force", worktreePath)
	_, _ = m.git.run(ctx, "worktree", "prune")

	if _, err := os.Stat(worktreePath); err == nil {
		if err := os.RemoveAll(worktreePath); err != nil {
			return fmt.Errorf("removing worktree directory %s: %w", worktreePath, err)
		}
	}
	return nil
}

// List returns every worktree known to the main repository.
func (m *WorktreeManager) List(ctx context.Context) ([]Worktree, error) {
	return m.git.ListWorktrees(ctx)
}

// CreateSymlinks links each of relativePaths from the main repository into
// worktreePath, so dotfiles and local config that git worktree does not
// duplicate (e.g. .env, .claude/settings.local.json) stay available to
// agents running there. A broken symlink at the target is replaced; an
// existing real file or valid symlink is left untouched.
func (m *WorktreeManager) CreateSymlinks(worktreePath string, relativePaths []string) error {
	isInHomeDir := !strings.HasPrefix(worktreePath, m.git.repoPath)

	for _, rel := range relativePaths {
		source := filepath.Join(m.git.repoPath, rel)
		target := filepath.Join(worktreePath, rel)

		if _, err := os.Stat(source); err != nil {
			continue
		}

		targetIsBrokenSymlink := false
		if fi, err := os.Lstat(target); err == nil && fi.Mode()&os.ModeSymlink != 0 {
			if _, err := os.Stat(target); err != nil {
				targetIsBrokenSymlink = true
			}
		}

		if _, err := os.Stat(target); err == nil && !targetIsBrokenSymlink {
			continue
		}

		if targetIsBrokenSymlink {
			_ = os.Remove(target)
		}

		if parent := filepath.Dir(target); parent != "" {
			if _, err := os.Stat(parent); err != nil {
				if err := os.MkdirAll(parent, 0o755); err != nil {
					return fmt.Errorf("creating directory %s: %w", parent, err)
				}
			}
		}

		var relativeSource string
		if isInHomeDir {
			diff, err := filepath.Rel(filepath.Dir(target), source)
			if err != nil {
				relativeSource = source
			} else {
				relativeSource = diff
			}
		} else {
			relativeSource = filepath.Join("../..", rel)
		}

		if err := os.Symlink(relativeSource, target); err != nil {
			return fmt.Errorf("symlinking %s to %s: %w", target, relativeSource, err)
		}
	}

	return nil
}

// GetStatus reports how a worktree compares to its upstream and to
// mainBranch.
func (m *WorktreeManager) GetStatus(ctx context.Context, worktreePath, mainBranch string) (*core.GitSyncStatus, error) {
	wc, err := NewClient(worktreePath)
	if err != nil {
		return nil, fmt.Errorf("opening worktree %s: %w", worktreePath, err)
	}

	ahead, behind := m.aheadBehind(ctx, wc)
	divergence := m.divergenceFromMain(ctx, wc, mainBranch)

	st, err := wc.StatusLocal(ctx)
	if err != nil {
		return nil, err
	}

	return &core.GitSyncStatus{
		Ahead:              ahead,
		Behind:             behind,
		DivergenceFromMain: divergence,
		IsClean:            st.IsClean(),
		IsSynced:           ahead == 0 && behind == 0,
	}, nil
}

func (m *WorktreeManager) aheadBehind(ctx context.Context, wc *Client) (ahead, behind int) {
	branch, err := wc.CurrentBranch(ctx)
	if err != nil || branch == "HEAD" {
		return 0, 0
	}

	upstream, err := wc.run(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil || upstream == "" {
		return 0, 0
	}

	out, err := wc.run(ctx, "rev-list", "--left-right", "--count", "HEAD..."+upstream)
	if err != nil {
		return 0, 0
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0
	}
	fmt.Sscanf(fields[0], "%d", &ahead)
	fmt.Sscanf(fields[1], "%d", &behind)
	return ahead, behind
}

func (m *WorktreeManager) divergenceFromMain(ctx context.Context, wc *Client, mainBranch string) int {
	mainRef := "refs/heads/" + mainBranch
	if _, err := wc.run(ctx, "rev-parse", "--verify", "--quiet", mainRef); err != nil {
		mainRef = "refs/remotes/origin/" + mainBranch
		if _, err := wc.run(ctx, "rev-parse", "--verify", "--quiet", mainRef); err != nil {
			return 0
		}
	}

	mergeBase, err := wc.run(ctx, "merge-base", mainRef, "HEAD")
	if err != nil {
		return 0
	}

	out, err := wc.run(ctx, "rev-list", "--count", mergeBase+"..HEAD")
	if err != nil {
		return 0
	}
	var count int
	fmt.Sscanf(out, "%d", &count)
	return count
}

// Fetch runs `git fetch --all --prune` in the worktree.
func (m *WorktreeManager) Fetch(ctx context.Context, worktreePath string) error {
	wc, err := NewClient(worktreePath)
	if err != nil {
		return err
	}
	_, err = wc.run(ctx, "fetch", "--all", "--prune")
	return err
}

// MergeMain fetches and merges origin/mainBranch into the worktree's
// current branch, returning core.ErrMergeConflict when git reports a
// conflict.
func (m *WorktreeManager) MergeMain(ctx context.Context, worktreePath, mainBranch string) error {
	if err := m.Fetch(ctx, worktreePath); err != nil {
		return err
	}

	wc, err := NewClient(worktreePath)
	if err != nil {
		return err
	}

	stdout, stderr, err := wc.runWithOutput(ctx, "merge", "origin/"+mainBranch, "--no-edit")
	if err != nil {
		if strings.Contains(stdout, "CONFLICT") || strings.Contains(stderr, "CONFLICT") {
			return core.ErrMergeConflict(mainBranch)
		}
		return fmt.Errorf("merging origin/%s: %s: %w", mainBranch, stderr, err)
	}
	return nil
}

// Checkout switches the worktree to branch.
func (m *WorktreeManager) Checkout(ctx context.Context, worktreePath, branch string) error {
	wc, err := NewClient(worktreePath)
	if err != nil {
		return err
	}
	return wc.CheckoutBranch(ctx, branch)
}

// GetDiff returns the worktree's uncommitted diff.
func (m *WorktreeManager) GetDiff(ctx context.Context, worktreePath string) (string, error) {
	wc, err := NewClient(worktreePath)
	if err != nil {
		return "", err
	}
	out, _, err := wc.runWithOutput(ctx, "diff", "--color=never")
	return out, err
}

// GetDiffAgainstMain returns the worktree's diff against origin/mainBranch.
func (m *WorktreeManager) GetDiffAgainstMain(ctx context.Context, worktreePath, mainBranch string) (string, error) {
	wc, err := NewClient(worktreePath)
	if err != nil {
		return "", err
	}
	out, _, err := wc.runWithOutput(ctx, "diff", "--color=never", "origin/"+mainBranch+"...HEAD")
	return out, err
}
