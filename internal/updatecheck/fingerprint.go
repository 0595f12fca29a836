package updatecheck

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint is the cache key of a candidate: lowercase hex HMAC-SHA256.
type Fingerprint string

// fingerprintPayload fixes the field order of the hashed document.
type fingerprintPayload struct {
	Theme      string `json:"theme"`
	CurrentVer string `json:"current_ver"`
	NextVer    string `json:"next_ver"`
}

// ComputeFingerprint keys the HMAC with secret over the canonical JSON
// {"theme","current_ver","next_ver"} of c. Versions are hashed as given,
// not normalized.
func ComputeFingerprint(secret []byte, c UpdateCandidate) Fingerprint {
	// Marshal cannot fail for a struct of strings.
	payload, _ := json.Marshal(fingerprintPayload{
		Theme:      c.PackageID,
		CurrentVer: c.InstalledVersion,
		NextVer:    c.AvailableVersion,
	})

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return Fingerprint(hex.EncodeToString(mac.Sum(nil)))
}
