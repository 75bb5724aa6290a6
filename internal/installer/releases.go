package installer

// Known node release lines, newest last. Kept small: the resolver only
// needs one satisfying release per supported major.
//
// TODO: refresh from the dist index at build time instead of shipping a
// static list.
var nodeReleases = []string{
	"18.19.1",
	"18.20.4",
	"20.11.1",
	"20.17.0",
	"20.18.1",
	"22.5.1",
	"22.11.0",
	"22.14.0",
	"24.1.0",
	"24.4.1",
}

// npm versions bundled with each node major
var bundledNpm = map[uint64]string{
	18: "10.2.4",
	20: "10.8.2",
	22: "10.9.2",
	24: "11.3.0",
}

// Known standalone npm releases, for projects pinning engines.npm
var npmReleases = []string{
	"9.9.3",
	"10.2.4",
	"10.8.2",
	"10.9.2",
	"11.3.0",
}

// Known yarn (classic) releases
var yarnReleases = []string{
	"1.21.1",
	"1.22.19",
	"1.22.22",
}
