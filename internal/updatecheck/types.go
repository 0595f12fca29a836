package updatecheck

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/obfx/themecheck/pkg/api"
)

// ErrInvalidVersion is returned when a candidate's version cannot be parsed.
var ErrInvalidVersion = errors.New("invalid version")

// StatusError is the status code of reports synthesized for failed checks.
const StatusError = "error"

// UpdateCandidate describes a pending update reported by the host.
type UpdateCandidate struct {
	PackageID        string `json:"package"`
	InstalledVersion string `json:"installed_version"`
	AvailableVersion string `json:"available_version"`
}

// Pending reports whether AvailableVersion is strictly newer than
// InstalledVersion.
func (c UpdateCandidate) Pending() (bool, error) {
	installed, err := semver.NewVersion(c.InstalledVersion)
	if err != nil {
		return false, fmt.Errorf("%w: installed %q: %v", ErrInvalidVersion, c.InstalledVersion, err)
	}
	available, err := semver.NewVersion(c.AvailableVersion)
	if err != nil {
		return false, fmt.Errorf("%w: available %q: %v", ErrInvalidVersion, c.AvailableVersion, err)
	}
	return available.GreaterThan(installed), nil
}

// FailureKind classifies why a check produced no usable impact data.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureNetwork   FailureKind = "network"
	FailureMalformed FailureKind = "malformed"
	FailureUpstream  FailureKind = "upstream"
)

// ImpactReport is the remote summary of how much an update changes a package.
type ImpactReport struct {
	StatusCode  string          `json:"status_code"`
	DiffPercent *float64        `json:"diff_percent,omitempty"`
	GalleryURL  string          `json:"gallery_url,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`

	// Failure is set on reports returned for failed checks. It is never
	// persisted since failed reports are not cached.
	Failure FailureKind `json:"-"`
}

// OK reports whether the upstream declared success.
func (r *ImpactReport) OK() bool {
	return r != nil && r.StatusCode == api.StatusOK
}

// Clone returns a deep copy.
func (r *ImpactReport) Clone() *ImpactReport {
	if r == nil {
		return nil
	}
	out := *r
	if r.DiffPercent != nil {
		d := *r.DiffPercent
		out.DiffPercent = &d
	}
	if r.Raw != nil {
		out.Raw = append(json.RawMessage(nil), r.Raw...)
	}
	return &out
}

func failedReport(kind FailureKind) *ImpactReport {
	return &ImpactReport{StatusCode: StatusError, Failure: kind}
}

func reportFromResponse(resp *api.CheckResponse) *ImpactReport {
	r := &ImpactReport{
		StatusCode: string(resp.StatusCode),
		Raw:        resp.Raw,
	}
	if resp.Data != nil {
		if resp.Data.GlobalDiff != nil {
			d := *resp.Data.GlobalDiff
			r.DiffPercent = &d
		}
		r.GalleryURL = resp.Data.Gallery
	}
	if !r.OK() {
		r.Failure = FailureUpstream
	}
	return r
}
