// Package installer resolves and installs the node runtime and package
// manager binaries, and invokes the package manager for dependency work.
//
// Binary downloads are the only retried operation in a build; everything
// else fails fast. Package-manager invocations go through an exec seam so
// tests can substitute scripted commands.
package installer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/Norgate-AV/nodebuild/internal/manifest"
)

// DefaultDist is the node binary distribution base URL
const DefaultDist = "https://nodejs.org/dist"

// Commander interface for testing
type Commander interface {
	Run() error
}

// Versions holds the concrete versions resolved for a build
type Versions struct {
	Node string
	Npm  string
	Yarn string
}

// Installer installs build binaries and runs package-manager commands
type Installer struct {
	dist          string
	installDir    string
	retryInterval time.Duration
	execCommand   func(name string, args ...string) Commander
}

// New creates an installer placing binaries under installDir.
// dist overrides the node distribution URL; empty selects the default.
func New(installDir, dist string) *Installer {
	if dist == "" {
		dist = DefaultDist
	}

	return &Installer{
		dist:          dist,
		installDir:    installDir,
		retryInterval: downloadInterval,
		execCommand: func(name string, args ...string) Commander {
			return exec.Command(name, args...)
		},
	}
}

// InstallNode resolves the engines.node range to a concrete release,
// downloads the distribution tarball and unpacks it under the install
// directory. Returns the resolved version.
func (i *Installer) InstallNode(rangeStr string) (string, error) {
	version, err := manifest.ResolveVersion(rangeStr, nodeReleases)
	if err != nil {
		return "", err
	}

	platform := nodePlatform()
	url := fmt.Sprintf("%s/v%s/node-v%s-%s.tar.gz", i.dist, version, version, platform)

	slog.Debug("installing node", "version", version, "url", url)

	archive := filepath.Join(i.installDir, "node.tar.gz")
	if err := i.download(url, archive); err != nil {
		return "", fmt.Errorf("node %s: %w", version, err)
	}

	defer os.Remove(archive)

	if err := extractTarGz(archive, filepath.Join(i.installDir, "node")); err != nil {
		return "", fmt.Errorf("failed to unpack node %s: %w", version, err)
	}

	return version, nil
}

// InstallNpm resolves the npm version for the build. Without an
// engines.npm range the version bundled with node is kept as-is;
// with one, the satisfying release is installed over it.
func (i *Installer) InstallNpm(rangeStr, nodeVersion string) (string, error) {
	bundled := bundledNpmFor(nodeVersion)

	if rangeStr == "" {
		return bundled, nil
	}

	// Skip the reinstall when the bundled npm already satisfies the range
	if ok, err := manifest.Satisfies(bundled, rangeStr); err == nil && ok {
		return bundled, nil
	}

	version, err := manifest.ResolveVersion(rangeStr, npmReleases)
	if err != nil {
		return "", err
	}

	slog.Debug("installing npm", "version", version, "bundled", bundled)

	if err := i.Run("npm", []string{"install", "-g", "npm@" + version}, i.installDir, io.Discard); err != nil {
		return "", fmt.Errorf("npm %s install failed: %w", version, err)
	}

	return version, nil
}

// InstallYarn resolves and installs yarn for alt-manager builds
func (i *Installer) InstallYarn(rangeStr string) (string, error) {
	version, err := manifest.ResolveVersion(rangeStr, yarnReleases)
	if err != nil {
		return "", err
	}

	slog.Debug("installing yarn", "version", version)

	if err := i.Run("npm", []string{"install", "-g", "yarn@" + version}, i.installDir, io.Discard); err != nil {
		return "", fmt.Errorf("yarn %s install failed: %w", version, err)
	}

	return version, nil
}

// Run invokes a package-manager command in dir, streaming combined
// output to out. Invocations are never retried; a non-zero exit is fatal
// at this layer.
func (i *Installer) Run(name string, args []string, dir string, out io.Writer) error {
	slog.Debug("run", "command", name, "args", args, "dir", dir)

	c := i.execCommand(name, args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Dir = dir
		cmd.Stdout = out
		cmd.Stderr = out
	}

	if err := c.Run(); err != nil {
		return fmt.Errorf("%s %v failed: %w", name, args, err)
	}

	return nil
}

// bundledNpmFor returns the npm version shipped with a node release
func bundledNpmFor(nodeVersion string) string {
	v, err := semver.NewVersion(nodeVersion)
	if err != nil {
		return ""
	}

	return bundledNpm[v.Major()]
}

// nodePlatform maps the host platform to the node distribution naming
func nodePlatform() string {
	goos := runtime.GOOS
	arch := runtime.GOARCH

	switch arch {
	case "amd64":
		arch = "x64"
	case "386":
		arch = "x86"
	}

	return goos + "-" + arch
}
