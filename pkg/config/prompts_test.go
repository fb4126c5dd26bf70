package config

import (
	"embed"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptLoader_Load_Embedded(t *testing.T) {
	prompts, err := newPromptLoader(defaultsFS).Load("", filepath.Join(t.TempDir(), "nonexistent"))
	require.NoError(t, err)

	assert.Contains(t, prompts.Instruction, "[PLAN]")
	assert.Contains(t, prompts.Instruction, "[ART]")
	assert.NotContains(t, prompts.Instruction, "lines starting with # are comments", "comment header stripped")
}

func TestPromptLoader_Load_FromUserDir(t *testing.T) {
	globalDir := filepath.Join(t.TempDir(), "prompts")
	require.NoError(t, os.MkdirAll(globalDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "instruction.txt"), []byte("draw cats only"), 0o600))

	prompts, err := newPromptLoader(defaultsFS).Load("", globalDir)
	require.NoError(t, err)
	assert.Equal(t, "draw cats only", prompts.Instruction)
}

func TestPromptLoader_Load_LocalOverridesGlobal(t *testing.T) {
	tmpDir := t.TempDir()
	localDir := filepath.Join(tmpDir, "local", "prompts")
	globalDir := filepath.Join(tmpDir, "global", "prompts")
	require.NoError(t, os.MkdirAll(localDir, 0o700))
	require.NoError(t, os.MkdirAll(globalDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "instruction.txt"), []byte("local"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "instruction.txt"), []byte("global"), 0o600))

	prompts, err := newPromptLoader(defaultsFS).Load(localDir, globalDir)
	require.NoError(t, err)
	assert.Equal(t, "local", prompts.Instruction)
}

func TestPromptLoader_Load_AllCommentedFallsBackToEmbedded(t *testing.T) {
	tmpDir := t.TempDir()
	localDir := filepath.Join(tmpDir, "local")
	globalDir := filepath.Join(tmpDir, "global")
	require.NoError(t, os.MkdirAll(localDir, 0o700))
	require.NoError(t, os.MkdirAll(globalDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "instruction.txt"), []byte("# only\n# comments\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "instruction.txt"), []byte("  \n"), 0o600))

	prompts, err := newPromptLoader(defaultsFS).Load(localDir, globalDir)
	require.NoError(t, err)
	assert.Contains(t, prompts.Instruction, "[ART]")
}

func TestPromptLoader_Load_EmptyEverywhere(t *testing.T) {
	var emptyFS embed.FS
	_, err := newPromptLoader(emptyFS).Load("", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instruction prompt is empty")
}

func TestPromptLoader_loadPromptWithLocalFallback_AllLevels(t *testing.T) {
	tmpDir := t.TempDir()
	localDir := filepath.Join(tmpDir, "local", "prompts")
	globalDir := filepath.Join(tmpDir, "global", "prompts")
	require.NoError(t, os.MkdirAll(localDir, 0o700))
	require.NoError(t, os.MkdirAll(globalDir, 0o700))

	pl := &promptLoader{embedFS: defaultsFS}

	// global used when local missing
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "instruction.txt"), []byte("global"), 0o600))
	content, err := pl.loadPromptWithLocalFallback(localDir, globalDir, "instruction.txt")
	require.NoError(t, err)
	assert.Equal(t, "global", content)

	// embedded used when global is empty
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "instruction.txt"), []byte(""), 0o600))
	content, err = pl.loadPromptWithLocalFallback(localDir, globalDir, "instruction.txt")
	require.NoError(t, err)
	assert.Contains(t, content, "[ROLE]")

	// unknown file falls through to nothing
	content, err = pl.loadPromptWithLocalFallback(localDir, globalDir, "unknown.txt")
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestPromptLoader_loadPromptFile(t *testing.T) {
	pl := &promptLoader{embedFS: defaultsFS}

	t.Run("not exists", func(t *testing.T) {
		content, err := pl.loadPromptFile("/nonexistent/path/file.txt")
		require.NoError(t, err)
		assert.Empty(t, content)
	})

	t.Run("trims whitespace", func(t *testing.T) {
		promptFile := filepath.Join(t.TempDir(), "test.txt")
		require.NoError(t, os.WriteFile(promptFile, []byte("  content with spaces  \n\n"), 0o600))
		content, err := pl.loadPromptFile(promptFile)
		require.NoError(t, err)
		assert.Equal(t, "content with spaces", content)
	})

	t.Run("strips comments", func(t *testing.T) {
		promptFile := filepath.Join(t.TempDir(), "test.txt")
		content := "# this is a comment\nkeep this line\n  # indented comment\nalso keep this"
		require.NoError(t, os.WriteFile(promptFile, []byte(content), 0o600))
		result, err := pl.loadPromptFile(promptFile)
		require.NoError(t, err)
		assert.Equal(t, "keep this line\nalso keep this", result)
	})

	t.Run("directory is an error", func(t *testing.T) {
		_, err := pl.loadPromptFile(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read prompt file")
	})
}

func TestPromptLoader_loadPromptFromEmbedFS(t *testing.T) {
	pl := &promptLoader{embedFS: defaultsFS}
	content, err := pl.loadPromptFromEmbedFS("defaults/config")
	require.NoError(t, err)
	assert.Contains(t, content, "max_lines")
	assert.NotContains(t, content, "# rendering")

	content, err = pl.loadPromptFromEmbedFS("nonexistent/file.txt")
	require.NoError(t, err)
	assert.Empty(t, content)
}

func Test_stripComments(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no comments", input: "line one\nline two", expected: "line one\nline two"},
		{name: "comment at start", input: "# comment\nkeep this", expected: "keep this"},
		{name: "indented comment", input: "  # indented comment\nkeep this", expected: "keep this"},
		{name: "preserves empty lines", input: "line one\n\nline two", expected: "line one\n\nline two"},
		{name: "hash in content preserved", input: "use 🟩 # not a comment", expected: "use 🟩 # not a comment"},
		{name: "only comments", input: "# comment one\n# comment two", expected: ""},
		{name: "empty input", input: "", expected: ""},
		{name: "CRLF line endings", input: "# comment\r\nkeep this\r\nalso keep", expected: "keep this\nalso keep"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stripComments(tc.input))
		})
	}
}
