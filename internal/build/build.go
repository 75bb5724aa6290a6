// Package build sequences the stages of a node build: toolchain
// installation, cache restore, dependency materialization, pruning,
// cache save and summary.
//
// Every stage runs strictly in order and is timed. A build-step cursor
// is written durably before each stage begins, so a failure at any point
// can be localized to a named phase after the fact. The first failing
// stage stops the build; the failure path runs a diagnostic battery over
// the captured package-manager output and always flushes the metadata
// record before the process exits.
package build

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Norgate-AV/nodebuild/internal/cache"
	"github.com/Norgate-AV/nodebuild/internal/config"
	"github.com/Norgate-AV/nodebuild/internal/console"
	"github.com/Norgate-AV/nodebuild/internal/installer"
	"github.com/Norgate-AV/nodebuild/internal/manifest"
	"github.com/Norgate-AV/nodebuild/internal/metadata"
)

// Toolchain installs build binaries and runs package-manager commands.
// Satisfied by installer.Installer; tests substitute a scripted fake.
type Toolchain interface {
	InstallNode(rangeStr string) (string, error)
	InstallNpm(rangeStr, nodeVersion string) (string, error)
	InstallYarn(rangeStr string) (string, error)
	Run(name string, args []string, dir string, out io.Writer) error
}

// Context carries everything a stage needs. It is owned by Run and
// passed explicitly; there is no ambient build state.
type Context struct {
	cfg   *config.Config
	con   *console.Console
	meta  *metadata.Store
	tools Toolchain
	store *cache.Store

	pkg      *manifest.Package
	locks    manifest.Lockfiles
	strategy manifest.Strategy
	spec     cache.Spec
	versions installer.Versions
	validity cache.Validity

	// combined package-manager output, scanned by the diagnostic
	// battery on failure
	log bytes.Buffer
}

// stage pairs a cursor name with the work done under it
type stage struct {
	name string
	fn   func() error
}

// New creates a build context
func New(cfg *config.Config, con *console.Console, meta *metadata.Store, tools Toolchain, store *cache.Store) *Context {
	return &Context{
		cfg:   cfg,
		con:   con,
		meta:  meta,
		tools: tools,
		store: store,
	}
}

// Run executes the build end to end. On failure the diagnostic battery
// runs and the error is returned after metadata has been flushed; the
// metadata record is flushed exactly once on every path.
func (c *Context) Run() error {
	err := c.execute()

	if err != nil {
		c.fail(err)
	} else {
		c.meta.SetStep("finished")
		c.meta.RecordBool("build-success", true)
	}

	c.flushMetadata()

	return err
}

// execute runs the stage sequence, stopping at the first failure.
// The cursor is set strictly before each stage; on failure it remains
// at the failing stage's name.
func (c *Context) execute() error {
	if err := c.runStage(stage{"init", c.stageInit}); err != nil {
		return err
	}

	// The remaining sequence depends on the strategy selected in init
	for _, st := range c.stageList() {
		if err := c.runStage(st); err != nil {
			return err
		}
	}

	return nil
}

func (c *Context) runStage(st stage) error {
	c.meta.SetStep(st.name)

	start := time.Now()
	err := st.fn()
	c.meta.RecordDuration(st.name+"-time", start)

	return err
}

// stageList assembles the post-init sequence. install-yarn only appears
// for yarn builds; the prune/save order follows cache_production_only.
func (c *Context) stageList() []stage {
	list := []stage{
		{"install-node", c.stageInstallNode},
		{"install-npm", c.stageInstallNpm},
	}

	if c.strategy == manifest.StrategyYarn {
		list = append(list, stage{"install-yarn", c.stageInstallYarn})
	}

	list = append(list,
		stage{"restore-cache", c.stageRestoreCache},
		stage{"install-dependencies", c.stageInstallDependencies},
	)

	if c.cfg.CacheProductionOnly {
		list = append(list,
			stage{"prune-dependencies", c.stagePruneDependencies},
			stage{"save-cache", c.stageSaveCache},
		)
	} else {
		list = append(list,
			stage{"save-cache", c.stageSaveCache},
			stage{"prune-dependencies", c.stagePruneDependencies},
		)
	}

	return append(list,
		stage{"install-metrics-plugin", c.stageMetricsPlugin},
		stage{"summarize", c.stageSummarize},
	)
}

// stageInit validates the project layout before anything is mutated,
// busts the cache when asked, and selects the install strategy.
func (c *Context) stageInit() error {
	c.con.Header("Building Node.js app in %s", c.cfg.ProjectDir)

	pkg, err := manifest.Load(c.cfg.ProjectDir)
	if err != nil {
		return err
	}

	c.pkg = pkg
	c.locks = manifest.DetectLockfiles(c.cfg.ProjectDir)

	if err := c.locks.Validate(); err != nil {
		return err
	}

	if c.cfg.CacheBust {
		c.con.Warn("Cache bust requested, deleting cache at %s", c.store.Root())

		if err := c.store.Bust(); err != nil {
			return err
		}
	}

	c.strategy = manifest.SelectStrategy(c.locks.HasYarnLock, c.locks.HasNodeModules)
	c.spec = cache.NewSpec(c.cfg.CacheDirectories, c.strategy)

	c.meta.Record("install-strategy", c.strategy.String())
	c.meta.Record("stack", stackID())

	return nil
}

func (c *Context) stageInstallNode() error {
	c.con.Header("Installing node")

	version, err := c.tools.InstallNode(c.pkg.Engines.Node)
	if err != nil {
		return err
	}

	c.versions.Node = version
	c.con.Info("Using node %s", version)
	c.meta.Record("node-version", version)

	return nil
}

func (c *Context) stageInstallNpm() error {
	version, err := c.tools.InstallNpm(c.pkg.Engines.Npm, c.versions.Node)
	if err != nil {
		return err
	}

	c.versions.Npm = version
	c.con.Info("Using npm %s", version)
	c.meta.Record("npm-version", version)

	return nil
}

func (c *Context) stageInstallYarn() error {
	version, err := c.tools.InstallYarn(c.pkg.Engines.Yarn)
	if err != nil {
		return err
	}

	c.versions.Yarn = version
	c.con.Info("Using yarn %s", version)
	c.meta.Record("yarn-version", version)

	return nil
}

// stageRestoreCache classifies the persisted cache against the current
// environment signature and restores directories when it is safe.
// Restore problems degrade to a fresh install, never a failed build.
func (c *Context) stageRestoreCache() error {
	c.con.Header("Restoring cache")

	// A checked-in node_modules cannot be adopted by yarn; drop it
	// before any restore so the install starts from a clean tree
	if c.strategy == manifest.StrategyYarn && c.locks.HasNodeModules {
		c.con.Warn("Removing existing node_modules: yarn cannot reuse an npm-installed tree")

		if err := os.RemoveAll(filepath.Join(c.cfg.ProjectDir, manifest.ModulesDir)); err != nil {
			return err
		}

		c.locks.HasNodeModules = false
	}

	if !c.spec.Default {
		c.con.Info("Using custom cache directories: %s", strings.Join(c.spec.Directories, ", "))
	}

	current := c.signature()

	prior, err := cache.LoadRecord(c.store.Root())
	if err != nil {
		c.con.Warn("Cache record unreadable, treating cache as empty: %v", err)
		prior = nil
	}

	var priorSig *cache.Signature
	if prior != nil {
		priorSig = &prior.Signature
	}

	c.validity = cache.Classify(priorSig, current, c.store.Present(), !c.cfg.DisableCache)
	c.meta.Record("cache-status", c.validity.String())

	restored, skipped, err := c.store.Restore(c.spec, c.validity, c.cfg.ProjectDir)
	if err != nil {
		c.con.Warn("Cache restore failed, continuing with a fresh install: %v", err)
		return nil
	}

	switch c.validity {
	case cache.Disabled:
		c.con.Info("Caching disabled")
	case cache.Empty:
		c.con.Info("No cache available")
	case cache.Valid:
		for _, dir := range restored {
			c.con.Info("Restored %s", dir)
		}
	case cache.NewSignature:
		c.con.Info("Build environment changed since the cache was written")
		for _, dir := range skipped {
			c.con.Info("Not restoring %s", dir)
		}
		c.con.Warn("Skipping cache restore, installation may take longer")
	}

	return nil
}

func (c *Context) stageInstallDependencies() error {
	c.con.Header("Installing dependencies")

	out := io.MultiWriter(&c.log, c.con.Writer())
	dir := c.cfg.ProjectDir

	switch c.strategy {
	case manifest.StrategyYarn:
		return c.tools.Run("yarn", []string{"install", "--frozen-lockfile"}, dir, out)

	case manifest.StrategyRebuild:
		c.con.Info("Prebuilt node_modules detected, rebuilding")

		if err := c.tools.Run("npm", []string{"rebuild"}, dir, out); err != nil {
			return err
		}

		return c.tools.Run("npm", []string{"install"}, dir, out)

	default:
		if c.locks.HasNpmLock {
			return c.tools.Run("npm", []string{"ci"}, dir, out)
		}

		return c.tools.Run("npm", []string{"install"}, dir, out)
	}
}

func (c *Context) stagePruneDependencies() error {
	c.con.Header("Pruning devDependencies")

	out := io.MultiWriter(&c.log, c.con.Writer())
	dir := c.cfg.ProjectDir

	if c.strategy == manifest.StrategyYarn {
		return c.tools.Run("yarn", []string{"install", "--production", "--ignore-scripts", "--prefer-offline"}, dir, out)
	}

	return c.tools.Run("npm", []string{"prune", "--omit=dev"}, dir, out)
}

// stageSaveCache copies the spec'd directories into the cache root and,
// last of all, replaces the signature record. The record only ever moves
// forward here, inside a successful build, so a failed build cannot
// overwrite a good one. Save problems are non-fatal.
func (c *Context) stageSaveCache() error {
	if c.cfg.DisableCache {
		c.con.Info("Caching disabled, skipping save")
		return nil
	}

	c.con.Header("Saving cache")

	saved, missing, err := c.store.Save(c.spec, c.cfg.ProjectDir)
	if err != nil {
		c.con.Warn("Cache save failed: %v", err)
		c.meta.RecordBool("cache-saved", false)
		return nil
	}

	for _, dir := range saved {
		c.con.Info("Cached %s", dir)
	}

	for _, dir := range missing {
		c.con.Info("Skipping %s (nothing to cache)", dir)
	}

	rec := cache.Record{
		Signature:   c.signature(),
		Directories: c.spec.Directories,
		CreatedAt:   time.Now(),
	}

	if err := cache.SaveRecord(c.store.Root(), rec); err != nil {
		c.con.Warn("Failed to write cache record: %v", err)
		c.meta.RecordBool("cache-saved", false)
		return nil
	}

	c.meta.RecordBool("cache-saved", true)

	return nil
}

// stageMetricsPlugin installs the runtime metrics start hook. The plugin
// is an optional add-on: a failure here warns and moves on.
func (c *Context) stageMetricsPlugin() error {
	if !c.cfg.Metrics {
		return nil
	}

	c.con.Header("Installing metrics plugin")

	hookDir := filepath.Join(c.cfg.ProjectDir, ".nodebuild")
	if err := os.MkdirAll(hookDir, 0o755); err != nil {
		c.con.Warn("Could not install metrics plugin: %v", err)
		return nil
	}

	hook := []byte("// Loaded via NODE_OPTIONS=--require to report runtime metrics.\nrequire('module');\nprocess.env.NODEBUILD_METRICS = '1';\n")
	if err := os.WriteFile(filepath.Join(hookDir, "metrics.js"), hook, 0o644); err != nil {
		c.con.Warn("Could not install metrics plugin: %v", err)
		return nil
	}

	c.meta.RecordBool("metrics-plugin", true)

	return nil
}

func (c *Context) stageSummarize() error {
	c.con.Header("Build succeeded!")

	count, top := countDependencies(filepath.Join(c.cfg.ProjectDir, manifest.ModulesDir))
	c.meta.Record("dependency-count", fmt.Sprintf("%d", count))

	c.con.Info("node %s | npm %s | %d packages", c.versions.Node, c.versions.Npm, count)

	if c.versions.Yarn != "" {
		c.con.Info("yarn %s", c.versions.Yarn)
	}

	if c.cfg.Verbose {
		for _, line := range top {
			c.con.Info("├── %s", line)
		}
	}

	return nil
}

// fail is the single failure path: it marks the build unsuccessful, runs
// the diagnostic battery over the captured output and always prints a
// closing message. The cursor is left at the failing stage.
func (c *Context) fail(err error) {
	c.meta.RecordBool("build-success", false)
	c.meta.Record("failure", err.Error())

	c.con.Error("Build failed: %v", err)

	// The failure message joins the captured output so predicates can
	// match errors raised before any package-manager command ran
	for _, hint := range runDiagnostics(c.log.String() + "\n" + err.Error()) {
		c.con.Warn("%s", hint)
	}

	step, serr := c.meta.Step()
	if serr != nil {
		c.con.Warn("Could not read the build step cursor: %v", serr)
		step = "unknown"
	}
	c.con.Error("Build step %q did not complete. Some possible problems are listed above; the full output of the failing command is printed during the build.", step)
}

// flushMetadata exports the record to the configured sink. Called
// exactly once per build, success or failure.
func (c *Context) flushMetadata() {
	var sink io.Writer = os.Stderr

	if c.cfg.MetadataOut != "" {
		f, err := os.Create(c.cfg.MetadataOut)
		if err != nil {
			c.con.Warn("Could not open metadata sink: %v", err)
		} else {
			defer f.Close()
			sink = f
		}
	}

	if err := c.meta.Flush(sink); err != nil {
		c.con.Warn("Could not flush build metadata: %v", err)
	}
}

// signature fingerprints the environment versions resolved for this
// build. The manager version is the one actually materializing the
// tree, so a yarn upgrade invalidates a yarn-written cache.
func (c *Context) signature() cache.Signature {
	manager := "npm"
	managerVersion := c.versions.Npm

	if c.strategy == manifest.StrategyYarn {
		manager = "yarn"
		managerVersion = c.versions.Yarn
	}

	return cache.Signature{
		NodeVersion:    c.versions.Node,
		ManagerVersion: managerVersion,
		PackageManager: manager,
		Stack:          stackID(),
	}
}

// stackID returns the persisted platform identifier
func stackID() string {
	if stack := os.Getenv("STACK"); stack != "" {
		return stack
	}

	return runtime.GOOS + "-" + runtime.GOARCH
}

// countDependencies enumerates top-level installed packages
func countDependencies(modulesDir string) (int, []string) {
	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		return 0, nil
	}

	count := 0
	var top []string

	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == ".bin" || entry.Name() == ".cache" {
			continue
		}

		// Scoped packages (@org/name) count each member
		if entry.Name()[0] == '@' {
			scoped, err := os.ReadDir(filepath.Join(modulesDir, entry.Name()))
			if err != nil {
				continue
			}

			for _, s := range scoped {
				if s.IsDir() {
					count++
					top = append(top, entry.Name()+"/"+s.Name())
				}
			}

			continue
		}

		count++
		top = append(top, entry.Name())
	}

	return count, top
}
