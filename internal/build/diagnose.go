package build

import (
	"log/slog"
	"strings"
)

// diagnostic matches one known failure signature in the captured
// package-manager output and produces a targeted remediation message
type diagnostic struct {
	name  string
	check func(log string) (string, bool)
}

// The battery runs in this fixed order on every failure. Predicates are
// read-only over the captured log and independent of each other.
var battery = []diagnostic{
	{"npm-version-mismatch", detectNpmVersionMismatch},
	{"malformed-lockfile", detectMalformedLockfile},
	{"unsupported-node-alias", detectUnsupportedAlias},
	{"unparsable-version-range", detectBadVersionRange},
	{"stale-lockfile", detectStaleLockfile},
	{"network-reset", detectNetworkReset},
}

// runDiagnostics applies every predicate to the captured output and
// collects the matches. A fault in one predicate never prevents the
// rest from running.
func runDiagnostics(log string) []string {
	var matches []string

	for _, d := range battery {
		if msg, ok := runPredicate(d, log); ok {
			matches = append(matches, msg)
		}
	}

	return matches
}

func runPredicate(d diagnostic, log string) (msg string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("diagnostic predicate panicked", "name", d.name, "cause", r)
			msg, ok = "", false
		}
	}()

	return d.check(log)
}

func detectNpmVersionMismatch(log string) (string, bool) {
	if strings.Contains(log, "is not compatible with your version of npm") ||
		strings.Contains(log, "npm ERR! notsup") {
		return "The npm version in engines.npm does not match the npm that resolved the dependency tree. Pin engines.npm to the version your lockfile was generated with.", true
	}

	return "", false
}

func detectMalformedLockfile(log string) (string, bool) {
	if strings.Contains(log, "Merge conflict detected in your lockfiles") ||
		strings.Contains(log, "Invalid package-lock.json") ||
		strings.Contains(log, "error parsing yarn.lock") {
		return "Your lockfile is malformed, likely from a bad merge. Regenerate it from package.json and commit the result.", true
	}

	return "", false
}

func detectUnsupportedAlias(log string) (string, bool) {
	if strings.Contains(log, "unsupported version alias") {
		return "engines.node uses an alias like \"latest\" that cannot be pinned. Use a semver range such as \"22.x\" instead.", true
	}

	return "", false
}

func detectBadVersionRange(log string) (string, bool) {
	if strings.Contains(log, "unparsable version range") ||
		strings.Contains(log, "Invalid comparator") {
		return "A version range in package.json could not be parsed. Check the engines and dependency ranges for typos.", true
	}

	return "", false
}

func detectStaleLockfile(log string) (string, bool) {
	if strings.Contains(log, "lock file's") && strings.Contains(log, "does not satisfy") ||
		strings.Contains(log, "Your lockfile needs to be updated") ||
		strings.Contains(log, "can only install packages when your package.json and package-lock.json") {
		return "Your lockfile is out of date with package.json. Run your package manager locally to refresh it, then commit the updated lockfile.", true
	}

	return "", false
}

func detectNetworkReset(log string) (string, bool) {
	if strings.Contains(log, "ECONNRESET") ||
		strings.Contains(log, "connection reset by peer") ||
		strings.Contains(log, "ETIMEDOUT") {
		return "The network connection to the registry was interrupted during install. This is usually transient; retry the build.", true
	}

	return "", false
}
