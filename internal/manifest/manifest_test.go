package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	pkg := `{
		"name": "example-app",
		"version": "1.2.3",
		"scripts": {"build": "webpack", "start": "node server.js"},
		"dependencies": {"express": "^4.18.0"},
		"devDependencies": {"jest": "^29.0.0"},
		"engines": {"node": "22.x", "npm": "^10.0.0"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(pkg), 0o644))

	p, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "example-app", p.Name)
	assert.Equal(t, "webpack", p.Scripts["build"])
	assert.Equal(t, "22.x", p.Engines.Node)
	assert.Equal(t, "^10.0.0", p.Engines.Npm)
	assert.Len(t, p.Dependencies, 1)
	assert.Len(t, p.DevDependencies, 1)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, ErrNoManifest)
}

func TestLoad_Unparsable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{oops"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestDetectLockfiles(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, Lockfiles{}, DetectLockfiles(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "package-lock.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "yarn.lock"), []byte(""), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))

	l := DetectLockfiles(dir)
	assert.True(t, l.HasNpmLock)
	assert.True(t, l.HasYarnLock)
	assert.True(t, l.HasNodeModules)
}

func TestLockfilesValidate(t *testing.T) {
	assert.NoError(t, Lockfiles{HasNpmLock: true}.Validate())
	assert.NoError(t, Lockfiles{HasYarnLock: true}.Validate())
	assert.ErrorIs(t, Lockfiles{HasNpmLock: true, HasYarnLock: true}.Validate(), ErrConflictingLockfiles)
}

func TestSelectStrategy_TotalAndDeterministic(t *testing.T) {
	tests := []struct {
		hasYarnLock    bool
		hasNodeModules bool
		expected       Strategy
	}{
		{false, false, StrategyNpm},
		{false, true, StrategyRebuild},
		{true, false, StrategyYarn},
		{true, true, StrategyYarn},
	}

	for _, test := range tests {
		result := SelectStrategy(test.hasYarnLock, test.hasNodeModules)
		assert.Equal(t, test.expected, result, "yarnLock=%v nodeModules=%v", test.hasYarnLock, test.hasNodeModules)

		// Same inputs, same answer
		assert.Equal(t, result, SelectStrategy(test.hasYarnLock, test.hasNodeModules))
	}
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "npm", StrategyNpm.String())
	assert.Equal(t, "yarn", StrategyYarn.String())
	assert.Equal(t, "rebuild", StrategyRebuild.String())
}

func TestResolveVersion(t *testing.T) {
	available := []string{"18.20.4", "20.18.1", "22.11.0", "22.14.0"}

	tests := []struct {
		rangeStr string
		expected string
	}{
		{"", "22.14.0"},
		{"22.x", "22.14.0"},
		{"^20.0.0", "20.18.1"},
		{"~22.11.0", "22.11.0"},
		{">=18 <21", "20.18.1"},
		{"18.20.4", "18.20.4"},
	}

	for _, test := range tests {
		result, err := ResolveVersion(test.rangeStr, available)
		require.NoError(t, err, test.rangeStr)
		assert.Equal(t, test.expected, result, test.rangeStr)
	}
}

func TestResolveVersion_UnsupportedAlias(t *testing.T) {
	for _, alias := range []string{"latest", "current", "lts", "lts/*", "node"} {
		_, err := ResolveVersion(alias, []string{"22.11.0"})
		assert.ErrorIs(t, err, ErrUnsupportedAlias, alias)
	}
}

func TestResolveVersion_BadRange(t *testing.T) {
	_, err := ResolveVersion("not-a-range", []string{"22.11.0"})
	assert.ErrorIs(t, err, ErrBadRange)
}

func TestResolveVersion_NoMatch(t *testing.T) {
	_, err := ResolveVersion("^99.0.0", []string{"22.11.0"})
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestSatisfies(t *testing.T) {
	ok, err := Satisfies("10.9.2", "^10.0.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Satisfies("9.9.3", "^10.0.0")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Satisfies("10.9.2", "")
	require.NoError(t, err)
	assert.True(t, ok, "empty range is satisfied by anything")

	_, err = Satisfies("10.9.2", "!!!")
	assert.ErrorIs(t, err, ErrBadRange)
}
