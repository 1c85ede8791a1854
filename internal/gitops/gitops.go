// Package gitops commits workspace changes with the git binary.
package gitops

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Repo is a git working tree that commits under a fixed identity.
type Repo struct {
	Dir         string
	AuthorName  string
	AuthorEmail string
}

// Init initializes a new git repository at dir.
func Init(ctx context.Context, dir string) error {
	if _, err := run(ctx, dir, nil, "init", "--quiet"); err != nil {
		return err
	}
	return nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// CommitAll stages everything and commits it. It returns the short hash of
// the new commit, or "" when the tree had nothing to commit.
func (r Repo) CommitAll(ctx context.Context, message string) (string, error) {
	if _, err := run(ctx, r.Dir, nil, "add", "-A"); err != nil {
		return "", err
	}

	status, err := run(ctx, r.Dir, nil, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(status) == "" {
		return "", nil
	}

	// The committer identity is set too so commits work without a global git config.
	env := []string{
		"GIT_AUTHOR_NAME=" + r.AuthorName,
		"GIT_AUTHOR_EMAIL=" + r.AuthorEmail,
		"GIT_COMMITTER_NAME=" + r.AuthorName,
		"GIT_COMMITTER_EMAIL=" + r.AuthorEmail,
	}
	if _, err := run(ctx, r.Dir, env, "commit", "--quiet", "--no-verify", "-m", message); err != nil {
		return "", err
	}

	out, err := run(ctx, r.Dir, nil, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func run(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}
