package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// MaxOutputPlaceholder in command args is replaced with the prompt's output budget.
const MaxOutputPlaceholder = "{{MAX_OUTPUT}}"

//go:generate moq -out mocks/command_runner.go -pkg mocks -skip-ensure -fmt goimports . CommandRunner

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) (stdout, stderr string, err error)
}

// execRunner runs commands with os/exec in their own process group.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, stdin, name string, args ...string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", fmt.Errorf("context already canceled: %w", err)
	}

	// exec.Command, not CommandContext: cancellation kills the whole process group below
	cmd := exec.Command(name, args...) //nolint:noctx // canceled via process group kill
	setupProcessGroup(cmd)
	cmd.Env = filterEnv(os.Environ(), "KAKAO_ACCESS_TOKEN", "KAKAO_REFRESH_TOKEN", "KAKAO_CLIENT_SECRET")

	var stdout, stderr bytes.Buffer
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", "", fmt.Errorf("start command: %w", err)
	}

	cleanup := newProcessGroupCleanup(cmd, ctx.Done())
	err := cleanup.Wait()
	return stdout.String(), stderr.String(), err
}

// filterEnv returns a copy of env with specified keys removed.
func filterEnv(env []string, keysToRemove ...string) []string {
	result := make([]string, 0, len(env))
	for _, e := range env {
		skip := false
		for _, key := range keysToRemove {
			if strings.HasPrefix(e, key+"=") {
				skip = true
				break
			}
		}
		if !skip {
			result = append(result, e)
		}
	}
	return result
}

// Command runs a local CLI as a backend. The instruction and subject are written
// to stdin, stdout is the generated text.
type Command struct {
	Name          string
	Args          []string
	ErrorPatterns []string // case-insensitive, a match in stdout or stderr is a quota failure
	runner        CommandRunner
}

// SetRunner sets the command runner, used by tests.
func (c *Command) SetRunner(r CommandRunner) {
	c.runner = r
}

// Generate runs the command once.
func (c *Command) Generate(ctx context.Context, p Prompt) (string, error) {
	if c.Name == "" {
		return "", errors.New("backend command not configured")
	}

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = strings.ReplaceAll(a, MaxOutputPlaceholder, strconv.Itoa(p.MaxOutput))
	}

	stdin := p.Subject
	if p.Instruction != "" {
		stdin = p.Instruction + "\n\n" + p.Subject
	}

	runner := c.runner
	if runner == nil {
		runner = &execRunner{}
	}

	stdout, stderr, err := runner.Run(ctx, stdin, c.Name, args...)
	if pattern := matchErrorPattern(stdout+"\n"+stderr, c.ErrorPatterns); pattern != "" {
		return "", fmt.Errorf("%s output matched %q: %w", c.Name, pattern, ErrQuota)
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", c.Name, ctx.Err())
		}
		if s := strings.TrimSpace(stderr); s != "" {
			return "", fmt.Errorf("%s exited with error: %w: %s", c.Name, err, truncateBody([]byte(s)))
		}
		return "", fmt.Errorf("%s exited with error: %w", c.Name, err)
	}
	return stdout, nil
}

// matchErrorPattern returns the first pattern found in output, or empty string.
func matchErrorPattern(output string, patterns []string) string {
	lower := strings.ToLower(output)
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return p
		}
	}
	return ""
}

// Container returns text the caller already generated, its prompt carries it in Prefilled.
type Container struct{}

// Generate returns the prefilled text as is.
func (Container) Generate(_ context.Context, p Prompt) (string, error) {
	return p.Prefilled, nil
}
