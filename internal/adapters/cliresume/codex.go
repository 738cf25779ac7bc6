package cliresume

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const codexHomeEnv = "CODEX_SQLITE_HOME"

// codexStateDBPath resolves the Codex state database: $CODEX_SQLITE_HOME/state
// when set, otherwise ~/.codex/state.
func codexStateDBPath() string {
	if custom := os.Getenv(codexHomeEnv); custom != "" {
		return filepath.Join(custom, "state")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codex", "state")
}

// codexSessionForDir looks up the most recently updated Codex thread whose
// cwd matches the worktree. Codex records cwd with and without a trailing
// slash depending on version, so both spellings plus a prefix match are tried.
func codexSessionForDir(worktreePath string) string {
	dbPath := codexStateDBPath()
	if dbPath == "" {
		return ""
	}
	if _, err := os.Stat(dbPath); err != nil {
		return ""
	}

	db, err := sql.Open("sqlite", dbPath+"?mode=ro&_pragma=busy_timeout(1000)")
	if err != nil {
		return ""
	}
	defer db.Close()

	exact := strings.TrimRight(worktreePath, "/")
	normalized := normalizeDirForComparison(worktreePath)
	var id string
	err = db.QueryRow(
		`SELECT id FROM threads
		 WHERE cwd = ? OR cwd = ? OR cwd LIKE ?
		 ORDER BY updated_at DESC LIMIT 1`,
		exact, strings.TrimRight(normalized, "/"), normalized+"%").Scan(&id)
	if err != nil {
		return ""
	}
	return id
}

func normalizeDirForComparison(path string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	if !strings.HasSuffix(normalized, "/") {
		normalized += "/"
	}
	return normalized
}
