package updatecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFingerprintGolden(t *testing.T) {
	// Pinned values: a change here invalidates every persisted cache.
	assert.Equal(t,
		Fingerprint("43d10ab225a7a7810508a8f01726eee8d2725fb20ca1265122933dbc60964b1c"),
		ComputeFingerprint([]byte("s3cret"), example))
	assert.Equal(t,
		Fingerprint("51235bcc7e6ef326fecd64d43678af60bf41f8ef676dead94480d5f29e8b57f9"),
		ComputeFingerprint([]byte("themecheck/v1"), example))
}

func TestComputeFingerprintIsPure(t *testing.T) {
	a := ComputeFingerprint([]byte("k"), example)
	b := ComputeFingerprint([]byte("k"), UpdateCandidate{PackageID: "mytheme", InstalledVersion: "1.0.0", AvailableVersion: "1.2.0"})
	assert.Equal(t, a, b)
	assert.Len(t, string(a), 64)
}

func TestComputeFingerprintDependsOnEveryInput(t *testing.T) {
	base := ComputeFingerprint([]byte("k"), example)

	variants := []UpdateCandidate{
		{PackageID: "other", InstalledVersion: "1.0.0", AvailableVersion: "1.2.0"},
		{PackageID: "mytheme", InstalledVersion: "1.0.1", AvailableVersion: "1.2.0"},
		{PackageID: "mytheme", InstalledVersion: "1.0.0", AvailableVersion: "1.2.1"},
		// versions are hashed as given, not normalized
		{PackageID: "mytheme", InstalledVersion: "1.0", AvailableVersion: "1.2.0"},
	}
	for _, v := range variants {
		assert.NotEqual(t, base, ComputeFingerprint([]byte("k"), v), "%+v", v)
	}
	assert.NotEqual(t, base, ComputeFingerprint([]byte("other-secret"), example))
}
