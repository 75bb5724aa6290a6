// Package manifest reads the project's package.json and surrounding
// lockfile state, and selects the dependency install strategy for a build.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Well-known file names in the project directory
const (
	PackageFile  = "package.json"
	NpmLockFile  = "package-lock.json"
	YarnLockFile = "yarn.lock"
	ModulesDir   = "node_modules"
)

var (
	// ErrConflictingLockfiles indicates both package-lock.json and
	// yarn.lock are present, which makes the install ambiguous
	ErrConflictingLockfiles = errors.New("both package-lock.json and yarn.lock are present")

	// ErrNoManifest indicates the project has no package.json
	ErrNoManifest = errors.New("no package.json found")
)

// Engines holds the version ranges declared under the "engines" key
type Engines struct {
	Node string `json:"node"`
	Npm  string `json:"npm"`
	Yarn string `json:"yarn"`
}

// Package is the parsed dependency manifest
type Package struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Engines         Engines           `json:"engines"`
}

// Load reads and parses package.json from the project directory
func Load(projectDir string) (*Package, error) {
	path := filepath.Join(projectDir, PackageFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNoManifest, projectDir)
		}

		return nil, fmt.Errorf("failed to read %s: %w", PackageFile, err)
	}

	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("unparsable %s: %w", PackageFile, err)
	}

	return &pkg, nil
}

// Lockfiles describes the lockfile and prebuilt-tree state of the project
type Lockfiles struct {
	HasNpmLock     bool
	HasYarnLock    bool
	HasNodeModules bool
}

// DetectLockfiles inspects the project directory for lockfiles and a
// pre-existing dependency directory
func DetectLockfiles(projectDir string) Lockfiles {
	var l Lockfiles

	if _, err := os.Stat(filepath.Join(projectDir, NpmLockFile)); err == nil {
		l.HasNpmLock = true
	}

	if _, err := os.Stat(filepath.Join(projectDir, YarnLockFile)); err == nil {
		l.HasYarnLock = true
	}

	if info, err := os.Stat(filepath.Join(projectDir, ModulesDir)); err == nil && info.IsDir() {
		l.HasNodeModules = true
	}

	return l
}

// Validate rejects lockfile layouts the build cannot proceed from
func (l Lockfiles) Validate() error {
	if l.HasNpmLock && l.HasYarnLock {
		return ErrConflictingLockfiles
	}

	return nil
}
