package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkillDir(t *testing.T, root, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
	return dir
}

func writeSkillFile(t *testing.T, root, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))
	path := filepath.Join(root, name+".md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewDiscovery(t *testing.T) {
	t.Run("with default dirs", func(t *testing.T) {
		discovery, err := NewDiscovery()
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join("files", "skills"), filepath.Join(".opencode", "skills")}, discovery.Dirs())
	})

	t.Run("with custom dirs", func(t *testing.T) {
		customDirs := []string{"/tmp/skills1", "/tmp/skills2"}
		discovery, err := NewDiscovery(WithSkillDirs(customDirs...))
		require.NoError(t, err)
		assert.Equal(t, customDirs, discovery.Dirs())
	})

	t.Run("with base dir", func(t *testing.T) {
		discovery, err := NewDiscovery(WithBaseDir("/repo"))
		require.NoError(t, err)
		assert.Equal(t, []string{"/repo/files/skills", "/repo/.opencode/skills"}, discovery.Dirs())
	})

	t.Run("empty base dir", func(t *testing.T) {
		_, err := NewDiscovery(WithBaseDir(""))
		assert.Error(t, err)
	})
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "commit", wantErr: false},
		{name: "hyphen and underscore", input: "secret-scan_v2", wantErr: false},
		{name: "path traversal", input: "../etc/passwd", wantErr: true},
		{name: "slash", input: "org/skill", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "space", input: "my skill", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tmpDir := t.TempDir()
	registry := filepath.Join(tmpDir, "registry")
	local := filepath.Join(tmpDir, "local")

	writeSkillDir(t, registry, "commit", `---
name: Smart Commit
description: Registry commit skill
---

## stage
type: shell
command: git add -A
`)
	writeSkillFile(t, local, "commit", `---
description: Local commit skill
---
`)
	writeSkillFile(t, local, "lint", `---
description: Local lint skill
---

## check
type: shell
command: npm test
`)

	discovery, err := NewDiscovery(WithSkillDirs(registry, local))
	require.NoError(t, err)

	t.Run("registry takes precedence", func(t *testing.T) {
		skill, err := discovery.Resolve("commit")
		require.NoError(t, err)
		assert.Equal(t, "commit", skill.ID)
		assert.Equal(t, "Smart Commit", skill.Name)
		assert.Equal(t, "Registry commit skill", skill.Description)
		require.Len(t, skill.Steps, 1)
	})

	t.Run("single file skill", func(t *testing.T) {
		skill, err := discovery.Resolve("lint")
		require.NoError(t, err)
		assert.Equal(t, "lint", skill.ID)
		assert.Equal(t, "lint", skill.Name)
		assert.Equal(t, "Local lint skill", skill.Description)
	})

	t.Run("not found lists available skills", func(t *testing.T) {
		skill, err := discovery.Resolve("deploy")
		assert.Nil(t, skill)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
		assert.Contains(t, err.Error(), "commit, lint")
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := discovery.Resolve("../commit")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid skill name")
	})
}

func TestDiscoverSkillsWithSymlinks(t *testing.T) {
	tmpDir := t.TempDir()
	skillsDir := filepath.Join(tmpDir, "skills")
	require.NoError(t, os.MkdirAll(skillsDir, 0o755))

	// Create actual skill directory outside the skills search path
	actualSkillDir := writeSkillDir(t, filepath.Join(tmpDir, "actual-skills"), "symlinked-skill", `---
description: A skill accessed via symlink
---
`)
	require.NoError(t, os.Symlink(actualSkillDir, filepath.Join(skillsDir, "symlinked-skill")))

	// Broken symlinks and symlinks to non-markdown files are ignored
	require.NoError(t, os.Symlink("/non/existent/path", filepath.Join(skillsDir, "broken-symlink")))
	targetFile := filepath.Join(tmpDir, "somefile.txt")
	require.NoError(t, os.WriteFile(targetFile, []byte("just a file"), 0o644))
	require.NoError(t, os.Symlink(targetFile, filepath.Join(skillsDir, "file-symlink")))

	discovery, err := NewDiscovery(WithSkillDirs(skillsDir))
	require.NoError(t, err)

	names, err := discovery.ListSkillNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"symlinked-skill"}, names)

	skill, err := discovery.Resolve("symlinked-skill")
	require.NoError(t, err)
	assert.Equal(t, "A skill accessed via symlink", skill.Description)
}

func TestListSkillNames(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{"gamma", "alpha", "beta"} {
		writeSkillDir(t, tmpDir, name, "---\ndescription: Skill "+name+"\n---\n")
	}
	writeSkillFile(t, tmpDir, "delta", "## only\ntype: shell\ncommand: git status\n")
	// Directories without SKILL.md and non-markdown files are not skills
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0o644))

	discovery, err := NewDiscovery(WithSkillDirs(tmpDir, filepath.Join(tmpDir, "missing")))
	require.NoError(t, err)

	names, err := discovery.ListSkillNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "delta", "gamma"}, names)
}

func TestLoadAll(t *testing.T) {
	tmpDir := t.TempDir()

	writeSkillFile(t, tmpDir, "good", "---\nname: good\n---\n\n## a\ntype: shell\ncommand: git status\n")
	writeSkillFile(t, tmpDir, "broken", "---\nname: broken\n")
	writeSkillFile(t, tmpDir, "dupe", "## a\ntype: shell\n## a\ntype: shell\n")

	discovery, err := NewDiscovery(WithSkillDirs(tmpDir))
	require.NoError(t, err)

	skills, err := discovery.LoadAll()
	require.Error(t, err)
	assert.Len(t, skills, 1)
	assert.Contains(t, skills, "good")

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.Contains(t, err.Error(), "skill broken")
	assert.Contains(t, err.Error(), "skill dupe")
}

func TestIDFromPath(t *testing.T) {
	assert.Equal(t, "commit", IDFromPath("/x/files/skills/commit/SKILL.md"))
	assert.Equal(t, "lint", IDFromPath(".opencode/skills/lint.md"))
	assert.Equal(t, "scan", IDFromPath("scan.markdown"))
}
