package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// instructionPromptFile is the master instruction sent ahead of every request.
const instructionPromptFile = "instruction.txt"

// Prompts holds loaded prompt templates.
// each prompt can be customized by placing a .txt file in the prompts directory.
type Prompts struct {
	Instruction string
}

// promptLoader loads prompts with embedded filesystem fallback.
type promptLoader struct {
	embedFS embed.FS
}

func newPromptLoader(embedFS embed.FS) *promptLoader {
	return &promptLoader{embedFS: embedFS}
}

// Load loads all prompt files with fallback chain: local → global → embedded.
func (p *promptLoader) Load(localDir, globalDir string) (Prompts, error) {
	instruction, err := p.loadPromptWithLocalFallback(localDir, globalDir, instructionPromptFile)
	if err != nil {
		return Prompts{}, fmt.Errorf("load instruction prompt: %w", err)
	}
	if instruction == "" {
		return Prompts{}, errors.New("instruction prompt is empty")
	}
	return Prompts{Instruction: instruction}, nil
}

// loadPromptWithLocalFallback loads a prompt file with fallback chain: local → global → embedded.
// localDir can be empty to skip local lookup.
func (p *promptLoader) loadPromptWithLocalFallback(localDir, globalDir, filename string) (string, error) {
	// try local first
	if localDir != "" {
		content, err := p.loadPromptFile(filepath.Join(localDir, filename))
		if err != nil {
			return "", err
		}
		if content != "" {
			return content, nil
		}
	}

	// fall back to global → embedded
	return p.loadPromptWithFallback(filepath.Join(globalDir, filename), "defaults/prompts/"+filename)
}

// loadPromptWithFallback tries to load a prompt from a user file first,
// falling back to the embedded filesystem if the user file doesn't exist or is empty.
func (p *promptLoader) loadPromptWithFallback(userPath, embedPath string) (string, error) {
	content, err := p.loadPromptFile(userPath)
	if err != nil {
		return "", err
	}
	if content != "" {
		return content, nil
	}
	return p.loadPromptFromEmbedFS(embedPath)
}

// loadPromptFile reads a prompt file from disk.
// returns empty string (not error) if file doesn't exist.
// comment lines (starting with #) are stripped.
func (p *promptLoader) loadPromptFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read prompt file %s: %w", path, err)
	}
	return strings.TrimSpace(stripComments(string(data))), nil
}

// loadPromptFromEmbedFS reads a prompt file from an embedded filesystem.
// returns empty string (not error) if file doesn't exist.
// comment lines (starting with #) are stripped.
func (p *promptLoader) loadPromptFromEmbedFS(path string) (string, error) {
	data, err := p.embedFS.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read embedded prompt %s: %w", path, err)
	}
	return strings.TrimSpace(stripComments(string(data))), nil
}

// stripComments removes lines starting with # (comment lines) from content.
// empty lines are preserved, inline comments are not supported.
// handles both Unix (LF) and Windows (CRLF) line endings.
func stripComments(content string) string {
	// normalize line endings: convert CRLF to LF
	content = strings.ReplaceAll(content, "\r\n", "\n")

	// pre-allocate with estimated capacity (count newlines + 1)
	lines := make([]string, 0, strings.Count(content, "\n")+1)
	for line := range strings.SplitSeq(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
