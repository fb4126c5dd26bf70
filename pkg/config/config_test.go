package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/t3xtart/pkg/artifact"
	"github.com/umputun/t3xtart/pkg/backend"
)

func Test_defaultsFS_AllFilesPresent(t *testing.T) {
	for _, file := range []string{"defaults/config", "defaults/prompts/instruction.txt"} {
		t.Run(file, func(t *testing.T) {
			data, err := defaultsFS.ReadFile(file)
			require.NoError(t, err, "embedded file %s should exist", file)
			assert.NotEmpty(t, data)
		})
	}
}

func TestLoad_WithCustomDir(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "custom-config")

	cfg, err := loadWithLocal(configDir, "")
	require.NoError(t, err)

	assert.Equal(t, configDir, cfg.ConfigDir())
	assert.Empty(t, cfg.LocalDir())
	assert.FileExists(t, filepath.Join(configDir, "config"))
	assert.FileExists(t, filepath.Join(configDir, "prompts", "instruction.txt"))

	assert.Equal(t, 15, cfg.MaxLines)
	assert.Contains(t, cfg.Instruction, "[ART]")
	assert.Equal(t, "0,255,0", cfg.Colors.Generate)
}

func TestLoad_DoesNotOverwriteUserFiles(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "t3xtart")
	require.NoError(t, os.MkdirAll(filepath.Join(configDir, "prompts"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config"), []byte("max_lines = 7\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "prompts", "mine.txt"), []byte("x"), 0o600))

	cfg, err := loadWithLocal(configDir, "")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.MaxLines)
	assert.NoFileExists(t, filepath.Join(configDir, "prompts", "instruction.txt"), "prompts dir with txt files is left alone")
	assert.Contains(t, cfg.Instruction, "[ART]", "embedded instruction used")
	assert.Len(t, cfg.Backends, 3, "embedded backends used")
}

func TestLoad_InvalidConfig(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "t3xtart")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config"), []byte(`kakao_timeout_ms = not_a_number`), 0o600))

	_, err := loadWithLocal(configDir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kakao_timeout_ms")
}

func TestLoad_PartialOverridesAllComponents(t *testing.T) {
	tmpDir := t.TempDir()
	globalDir := filepath.Join(tmpDir, "global")
	localDir := filepath.Join(tmpDir, ".t3xtart")
	require.NoError(t, os.MkdirAll(filepath.Join(globalDir, "prompts"), 0o700))
	require.NoError(t, os.MkdirAll(filepath.Join(localDir, "prompts"), 0o700))

	globalConfig := `
max_lines = 10
refresh_timeout_ms = 2000
color_generate = #ff0000
color_error = #00ff00
`
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "config"), []byte(globalConfig), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "prompts", "instruction.txt"), []byte("global instruction"), 0o600))

	localConfig := `
max_lines = 5
color_generate = #0000ff
backends = solo

[backend.solo]
kind = openai
endpoint = http://localhost:8080/v1/chat/completions
`
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "config"), []byte(localConfig), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "prompts", "instruction.txt"), []byte("local instruction"), 0o600))

	cfg, err := loadWithLocal(globalDir, localDir)
	require.NoError(t, err)

	assert.Equal(t, localDir, cfg.LocalDir())
	assert.Equal(t, 5, cfg.MaxLines, "local wins")
	assert.Equal(t, 2000, cfg.RefreshTimeoutMs, "global preserved")
	assert.Equal(t, 10000, cfg.KakaoTimeoutMs, "embedded default")
	assert.Equal(t, "0,0,255", cfg.Colors.Generate)
	assert.Equal(t, "0,255,0", cfg.Colors.Error)
	assert.Equal(t, "0,255,255", cfg.Colors.Shape)
	assert.Equal(t, "local instruction", cfg.Instruction)
	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, "solo", cfg.Backends[0].Name)
}

func TestLoad_SymlinkedConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	realDir := filepath.Join(tmpDir, "dotfiles-repo", "t3xtart-config")
	require.NoError(t, os.MkdirAll(filepath.Join(realDir, "prompts"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(realDir, "config"), []byte("max_lines = 9\ncolor_shape = #123456\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(realDir, "prompts", "instruction.txt"), []byte("symlinked instruction"), 0o600))

	symlinkDir := filepath.Join(tmpDir, "config-symlink")
	require.NoError(t, os.Symlink(realDir, symlinkDir))

	cfg, err := loadWithLocal(symlinkDir, "")
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.MaxLines)
	assert.Equal(t, "18,52,86", cfg.Colors.Shape)
	assert.Equal(t, "symlinked instruction", cfg.Instruction)
	assert.Equal(t, symlinkDir, cfg.ConfigDir(), "symlink path kept, not resolved")
}

func TestDefaultConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "t3xtart"), DefaultConfigDir())

	t.Setenv("XDG_CONFIG_HOME", "")
	assert.Contains(t, DefaultConfigDir(), filepath.Join(".config", "t3xtart"))
}

func TestConfig_Descriptors(t *testing.T) {
	cfg := &Config{Values: Values{Backends: []BackendValues{
		{Name: "container", Kind: "container"},
		{Name: "gemini", Kind: "gemini", Model: "gemini-2.5-flash", MaxOutput: 2048, TimeoutMs: 1500},
	}}}

	assert.Equal(t, []backend.Descriptor{
		{Name: "container", Kind: backend.KindContainer},
		{Name: "gemini", Kind: backend.KindGemini, Model: "gemini-2.5-flash", MaxOutput: 2048, Timeout: 1500 * time.Millisecond},
	}, cfg.Descriptors())
}

func TestConfig_Normalizer(t *testing.T) {
	n := (&Config{Values: Values{MaxLines: 4}}).Normalizer()
	assert.Equal(t, artifact.Normalizer{MaxLines: 4, DensityThreshold: artifact.DefaultDensityThreshold,
		Filler: artifact.DefaultFiller}, n)

	n = (&Config{Values: Values{MaxLines: 4, DensityThreshold: 0.5, DensityThresholdSet: true, PadGlyph: "⬛"}}).Normalizer()
	assert.Equal(t, artifact.Normalizer{MaxLines: 4, DensityThreshold: 0.5, Filler: "⬛"}, n)
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := &Config{Values: Values{KakaoTimeoutMs: 10000, RefreshTimeoutMs: 5000, NotifyTimeoutMs: 250}}
	assert.Equal(t, 10*time.Second, cfg.KakaoTimeout())
	assert.Equal(t, 5*time.Second, cfg.RefreshTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.NotifyTimeout())
}
