package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindLocalConfig(t *testing.T) {
	// Create a temporary directory structure
	tempDir := t.TempDir()
	subDir := filepath.Join(tempDir, "subdir")
	err := os.Mkdir(subDir, 0o755)
	assert.NoError(t, err)

	// Create config file
	configYML := filepath.Join(subDir, ".nodebuild.yml")
	err = os.WriteFile(configYML, []byte("verbose: true"), 0o644)
	assert.NoError(t, err)

	// Test finding in subdir
	result := FindLocalConfig(subDir)
	assert.Equal(t, configYML, result)

	// Test finding from a child of subdir
	deep := filepath.Join(subDir, "deep")
	assert.NoError(t, os.Mkdir(deep, 0o755))
	result = FindLocalConfig(deep)
	assert.Equal(t, configYML, result)

	// Test not found
	result = FindLocalConfig(tempDir)
	assert.Equal(t, "", result)
}

func TestFindLocalConfig_ExtensionPrecedence(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, ".nodebuild.json")
	ymlPath := filepath.Join(dir, ".nodebuild.yml")
	assert.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o644))
	assert.NoError(t, os.WriteFile(ymlPath, []byte(""), 0o644))

	// yml wins over json
	assert.Equal(t, ymlPath, FindLocalConfig(dir))
}
