package build

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnostics_KnownSignatures(t *testing.T) {
	tests := []struct {
		name string
		log  string
		hint string
	}{
		{
			"npm version mismatch",
			"npm ERR! notsup Required: {\"npm\":\"^9.0.0\"}\nnpm ERR! engine express@4.18.0 is not compatible with your version of npm",
			"engines.npm",
		},
		{
			"malformed lockfile",
			"error parsing yarn.lock: unexpected token on line 14",
			"lockfile is malformed",
		},
		{
			"merge conflict lockfile",
			"npm ERR! Merge conflict detected in your lockfiles",
			"lockfile is malformed",
		},
		{
			"unsupported alias",
			"unsupported version alias: \"latest\"",
			"cannot be pinned",
		},
		{
			"unparsable range",
			"unparsable version range: \">>=12\"",
			"could not be parsed",
		},
		{
			"stale lockfile",
			"npm ERR! `npm ci` can only install packages when your package.json and package-lock.json are in sync",
			"out of date",
		},
		{
			"yarn stale lockfile",
			"error Your lockfile needs to be updated, but yarn was run with `--frozen-lockfile`.",
			"out of date",
		},
		{
			"network reset",
			"npm ERR! network read ECONNRESET",
			"transient",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			matches := runDiagnostics(test.log)
			require.NotEmpty(t, matches, "expected a match for %q", test.name)
			assert.Contains(t, strings.Join(matches, "\n"), test.hint)
		})
	}
}

func TestDiagnostics_CleanLogMatchesNothing(t *testing.T) {
	log := "added 1204 packages in 32s\nfound 0 vulnerabilities"
	assert.Empty(t, runDiagnostics(log))
}

func TestDiagnostics_MultipleMatchesAllCollected(t *testing.T) {
	log := "npm ERR! network read ECONNRESET\n" +
		"error Your lockfile needs to be updated"

	matches := runDiagnostics(log)
	assert.Len(t, matches, 2)
}

func TestRunPredicate_PanicIsolated(t *testing.T) {
	faulty := diagnostic{
		name: "faulty",
		check: func(log string) (string, bool) {
			panic("predicate bug")
		},
	}

	msg, ok := runPredicate(faulty, "anything")
	assert.False(t, ok)
	assert.Empty(t, msg)
}

func TestDiagnostics_FaultyPredicateDoesNotStopBattery(t *testing.T) {
	original := battery
	defer func() { battery = original }()

	battery = append([]diagnostic{{
		name: "faulty",
		check: func(log string) (string, bool) {
			panic("predicate bug")
		},
	}}, original...)

	matches := runDiagnostics("npm ERR! network read ECONNRESET")
	assert.Len(t, matches, 1, "later predicates still run after a fault")
}
