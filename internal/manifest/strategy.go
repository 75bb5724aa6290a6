package manifest

// Strategy is the dependency install strategy for a build
type Strategy int

const (
	// StrategyNpm is a fresh install with npm
	StrategyNpm Strategy = iota

	// StrategyYarn is a fresh install with yarn, selected by a yarn.lock
	StrategyYarn

	// StrategyRebuild rebuilds a node_modules tree that was checked in
	// with the source
	StrategyRebuild
)

func (s Strategy) String() string {
	switch s {
	case StrategyYarn:
		return "yarn"
	case StrategyRebuild:
		return "rebuild"
	default:
		return "npm"
	}
}

// SelectStrategy chooses the install strategy from the detected lockfile
// state. A yarn.lock always wins: yarn cannot adopt an npm-materialized
// tree, so any existing node_modules is discarded before install. Without
// a yarn.lock, a pre-existing node_modules is treated as prebuilt and
// rebuilt in place. The choice is made once per build and never revisited.
func SelectStrategy(hasYarnLock, hasNodeModules bool) Strategy {
	if hasYarnLock {
		return StrategyYarn
	}

	if hasNodeModules {
		return StrategyRebuild
	}

	return StrategyNpm
}
