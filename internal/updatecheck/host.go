package updatecheck

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/obfx/themecheck/internal/logging"
)

// UpdateOffer is one entry of the host's update state: the newer version a
// package can be updated to, and the impact report attached to it.
type UpdateOffer struct {
	NewVersion string        `json:"new_version"`
	URL        string        `json:"url,omitempty"`
	Changes    *ImpactReport `json:"changes,omitempty"`
}

// UpdateState mirrors the host's update-check state: installed versions by
// package id, and offers by package id.
type UpdateState struct {
	Checked  map[string]string       `json:"checked"`
	Response map[string]*UpdateOffer `json:"response"`
}

// Listing is a package as shown in the host's management UI. Update holds
// the HTML notice.
type Listing struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Update  string `json:"update,omitempty"`
}

// OnUpdateCheck is called whenever the host recomputes its update state. It
// attaches an impact report to every offer that is a pending update and
// returns the same state. States without checked packages are returned
// untouched.
func (c *Checker) OnUpdateCheck(ctx context.Context, state *UpdateState) *UpdateState {
	if state == nil || len(state.Checked) == 0 {
		return state
	}

	ids := make([]string, 0, len(state.Response))
	for id, offer := range state.Response {
		if offer == nil {
			continue
		}
		if _, ok := state.Checked[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	reports := make([]*ImpactReport, len(ids))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		candidate := UpdateCandidate{
			PackageID:        id,
			InstalledVersion: state.Checked[id],
			AvailableVersion: state.Response[id].NewVersion,
		}
		g.Go(func() error {
			r, err := c.Evaluate(ctx, candidate)
			if err != nil {
				if errors.Is(err, ErrInvalidVersion) {
					c.logger(ctx).Warn("skipping package with unparseable version", logging.KeyPackage, id, logging.KeyError, err)
				}
				return nil
			}
			reports[i] = r
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range ids {
		if reports[i] != nil {
			state.Response[id].Changes = reports[i]
		}
	}
	return state
}

// PrepareForDisplay sets the Update notice of every listing that has a
// pending offer in state: the base notice, plus the impact paragraph when
// the offer carries a successful report.
func (c *Checker) PrepareForDisplay(listings map[string]*Listing, state *UpdateState) map[string]*Listing {
	if state == nil {
		return listings
	}

	for id, listing := range listings {
		offer := state.Response[id]
		if listing == nil || offer == nil {
			continue
		}

		// The attached report was fingerprinted with the checked version.
		installed := state.Checked[id]
		if installed == "" {
			installed = listing.Version
		}
		candidate := UpdateCandidate{PackageID: id, InstalledVersion: installed, AvailableVersion: offer.NewVersion}
		if pending, err := candidate.Pending(); err != nil || !pending {
			continue
		}

		name := listing.Name
		if name == "" {
			name = id
		}
		listing.Update = Decorate(BaseNotice(name, offer.URL, offer.NewVersion), candidate, offer.Changes)
	}
	return listings
}
