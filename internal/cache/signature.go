// Package cache provides the cross-build dependency cache.
//
// Caching is coarse and directory-granular: a configurable set of
// directories is copied between the build tree and a persistent cache
// root. Whether a restore is safe is decided by an environment signature
// covering every version that shapes the installed tree:
//
//  1. The signature is computed fresh each build from the resolved node
//     and package-manager versions plus the platform stack identifier.
//  2. It is compared against the record persisted by the last successful
//     build to classify the cache as valid or stale.
//  3. A new record is written only at the final save of a successful
//     build, so a mid-build failure never replaces a good record.
//
// Restored contents are trusted on signature match alone; there is no
// per-file verification.
package cache

// Signature fingerprints the build environment versions that determine
// whether a cached dependency tree is safe to reuse. ManagerVersion is
// the version of whichever manager materializes the tree: npm's for npm
// and rebuild builds, yarn's for yarn builds.
type Signature struct {
	NodeVersion    string `json:"node_version"`
	ManagerVersion string `json:"package_manager_version"`
	PackageManager string `json:"package_manager"`
	Stack          string `json:"stack"`
}

// Validity classifies whether the persisted cache may be restored
type Validity int

const (
	// Disabled means caching is turned off for this build; terminal,
	// no restore is attempted
	Disabled Validity = iota

	// Empty means no prior cache record exists
	Empty

	// Valid means the prior signature matches and the cache is safe to restore
	Valid

	// NewSignature means the environment changed since the cache was
	// written; the restore is invalidated but this is not an error
	NewSignature
)

func (v Validity) String() string {
	switch v {
	case Disabled:
		return "disabled"
	case Empty:
		return "empty"
	case Valid:
		return "valid"
	default:
		return "new-signature"
	}
}

// Classify compares the prior build's signature with the current one.
// All four outcomes are successful terminations of classification, not
// failures; the caller records whichever one occurs.
func Classify(prior *Signature, current Signature, present, enabled bool) Validity {
	if !enabled {
		return Disabled
	}

	if prior == nil || !present {
		return Empty
	}

	if *prior == current {
		return Valid
	}

	return NewSignature
}
