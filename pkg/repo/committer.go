package repo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Committer persists run artifacts into version control. It only ever
// creates a commit when the staged tree actually differs, so a run that
// produced no changes leaves history untouched.
type Committer struct {
	dir string
}

func New(dir string) *Committer {
	return &Committer{dir: dir}
}

func (c *Committer) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("git %s: %v: %s", strings.Join(args, " "), err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}

// CommitIfChanged stages the given paths and commits them with message.
// It reports whether a commit was created.
func (c *Committer) CommitIfChanged(ctx context.Context, message string, paths ...string) (bool, error) {
	args := append([]string{"add", "--"}, paths...)
	if _, err := c.git(ctx, args...); err != nil {
		return false, err
	}

	// Exit status 1 from diff --cached --quiet means there are staged
	// changes; 0 means the tree is unchanged and the run is a no-op.
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--quiet")
	cmd.Dir = c.dir
	if err := cmd.Run(); err == nil {
		return false, nil
	} else if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() != 1 {
		return false, fmt.Errorf("git diff --cached: %v", err)
	}

	if _, err := c.git(ctx, "commit", "-m", message); err != nil {
		return false, err
	}
	return true, nil
}

// Head returns the subject line of the current HEAD commit.
func (c *Committer) Head(ctx context.Context) (string, error) {
	out, err := c.git(ctx, "log", "-1", "--pretty=%s")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
