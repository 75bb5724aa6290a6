package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	sig := Signature{
		NodeVersion:    "22.11.0",
		ManagerVersion: "10.9.2",
		PackageManager: "npm",
		Stack:          "linux-x64",
	}

	other := sig
	other.NodeVersion = "20.18.1"

	tests := []struct {
		name     string
		prior    *Signature
		current  Signature
		present  bool
		enabled  bool
		expected Validity
	}{
		{"matching signature is valid", &sig, sig, true, true, Valid},
		{"changed node version is new-signature", &sig, other, true, true, NewSignature},
		{"no prior record is empty", nil, sig, true, true, Empty},
		{"absent cache is empty", &sig, sig, false, true, Empty},
		{"disabled wins over match", &sig, sig, true, false, Disabled},
		{"disabled wins over absence", nil, sig, false, false, Disabled},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := Classify(test.prior, test.current, test.present, test.enabled)
			assert.Equal(t, test.expected, result)
		})
	}
}

func TestClassify_EveryFieldInvalidates(t *testing.T) {
	base := Signature{
		NodeVersion:    "22.11.0",
		ManagerVersion: "10.9.2",
		PackageManager: "npm",
		Stack:          "linux-x64",
	}

	variants := []Signature{
		{NodeVersion: "20.18.1", ManagerVersion: "10.9.2", PackageManager: "npm", Stack: "linux-x64"},
		{NodeVersion: "22.11.0", ManagerVersion: "10.8.2", PackageManager: "npm", Stack: "linux-x64"},
		{NodeVersion: "22.11.0", ManagerVersion: "10.9.2", PackageManager: "yarn", Stack: "linux-x64"},
		{NodeVersion: "22.11.0", ManagerVersion: "10.9.2", PackageManager: "npm", Stack: "darwin-arm64"},
	}

	for _, v := range variants {
		prior := v
		assert.Equal(t, NewSignature, Classify(&prior, base, true, true), "prior %+v", v)
	}
}

func TestValidityString(t *testing.T) {
	assert.Equal(t, "disabled", Disabled.String())
	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "new-signature", NewSignature.String())
}
