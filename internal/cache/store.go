package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/nodebuild/internal/manifest"
)

// Default cached directory sets per install strategy. Yarn keeps its own
// download cache; npm uses ~/.npm but inside the build tree we cache the
// project-local .npm mirror alongside the installed modules.
var (
	defaultNpmDirs  = []string{"node_modules", ".npm"}
	defaultYarnDirs = []string{"node_modules", ".cache/yarn"}
)

// Spec is the set of directory paths eligible for cross-build
// persistence. The same spec instance governs both restore and save
// within one build.
type Spec struct {
	Directories []string

	// Default reports whether the set was manager-determined rather
	// than supplied by the project
	Default bool
}

// NewSpec builds the directory spec for a build. An explicit project
// list overrides the manager-determined default set.
func NewSpec(custom []string, strategy manifest.Strategy) Spec {
	if len(custom) > 0 {
		return Spec{Directories: custom}
	}

	if strategy == manifest.StrategyYarn {
		return Spec{Directories: defaultYarnDirs, Default: true}
	}

	return Spec{Directories: defaultNpmDirs, Default: true}
}

// Store moves the spec'd directories between a build tree and the
// persistent cache root
type Store struct {
	root string
}

// NewStore creates a store over the given cache root. The root is not
// created until something is saved into it.
func NewStore(cacheRoot string) *Store {
	return &Store{root: cacheRoot}
}

// Root returns the cache root path
func (s *Store) Root() string {
	return s.root
}

// Present reports whether the cache root exists on disk
func (s *Store) Present() bool {
	info, err := os.Stat(s.root)
	return err == nil && info.IsDir()
}

// Restore copies cached directories into the build tree according to the
// validity classification. It returns the directories actually copied,
// and separately the directories that would have been restored when the
// classification forbids copying, so callers can surface them.
//
// A spec'd directory absent from the cache is skipped, never an error.
func (s *Store) Restore(spec Spec, validity Validity, buildDir string) (restored, skipped []string, err error) {
	switch validity {
	case Disabled, Empty:
		return nil, nil, nil

	case NewSignature:
		// Invalidated: enumerate for operator visibility, copy nothing
		for _, dir := range spec.Directories {
			if _, err := os.Stat(filepath.Join(s.root, dir)); err == nil {
				skipped = append(skipped, dir)
			}
		}

		return nil, skipped, nil
	}

	for _, dir := range spec.Directories {
		src := filepath.Join(s.root, dir)

		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}

		dst := filepath.Join(buildDir, dir)
		if err := copyDir(src, dst); err != nil {
			return restored, nil, fmt.Errorf("failed to restore %s: %w", dir, err)
		}

		restored = append(restored, dir)
	}

	return restored, nil, nil
}

// Save copies each spec'd directory from the build tree into the cache
// root, fully replacing prior contents per path. Each directory is
// copied to a temporary sibling and then renamed into place, so an
// interruption can lose an entry but never leave a half-written one.
//
// Directories listed in the spec but absent from the build tree are
// skipped and reported back.
func (s *Store) Save(spec Spec, buildDir string) (saved, missing []string, err error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create cache root: %w", err)
	}

	for _, dir := range spec.Directories {
		src := filepath.Join(buildDir, dir)

		if _, err := os.Stat(src); os.IsNotExist(err) {
			missing = append(missing, dir)
			continue
		}

		dst := filepath.Join(s.root, dir)
		tmp := fmt.Sprintf("%s.tmp-%d", dst, os.Getpid())

		if err := copyDir(src, tmp); err != nil {
			os.RemoveAll(tmp)
			return saved, missing, fmt.Errorf("failed to save %s: %w", dir, err)
		}

		if err := os.RemoveAll(dst); err != nil {
			os.RemoveAll(tmp)
			return saved, missing, fmt.Errorf("failed to replace cached %s: %w", dir, err)
		}

		if err := os.Rename(tmp, dst); err != nil {
			os.RemoveAll(tmp)
			return saved, missing, fmt.Errorf("failed to replace cached %s: %w", dir, err)
		}

		saved = append(saved, dir)
	}

	return saved, missing, nil
}

// Bust removes the entire cache root, record included
func (s *Store) Bust() error {
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("failed to bust cache: %w", err)
	}

	return nil
}

// copyDir recursively copies a directory tree, preserving file modes
func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}

		// Symlinks inside node_modules (.bin entries) are recreated as-is
		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}

			os.Remove(target)
			return os.Symlink(link, target)
		}

		return copyFile(path, target, info.Mode().Perm())
	})
}

// copyFile copies a file from src to dst
func copyFile(src, dst string, perm os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer srcFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	return nil
}
