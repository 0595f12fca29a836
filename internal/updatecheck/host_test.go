package updatecheck

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obfx/themecheck/internal/store"
	"github.com/obfx/themecheck/pkg/api"
)

func TestOnUpdateCheckEmptyCheckedIsUntouched(t *testing.T) {
	f := newFakeAPI(t, respond(successBody))
	c, _ := newChecker(t, f)

	state := &UpdateState{Response: map[string]*UpdateOffer{"mytheme": {NewVersion: "1.2.0"}}}
	got := c.OnUpdateCheck(context.Background(), state)
	assert.Same(t, state, got)
	assert.Nil(t, state.Response["mytheme"].Changes)
	assert.Equal(t, int32(0), f.posts.Load())

	assert.Nil(t, c.OnUpdateCheck(context.Background(), nil))
}

func TestOnUpdateCheckAttachesReports(t *testing.T) {
	f := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("package") == "broken" {
			io.WriteString(w, `{"status_code":"500"}`)
			return
		}
		io.WriteString(w, successBody)
	})
	c, err := New(Config{API: api.NewClient(f.server.URL), Store: store.NewMemory(), Secret: "s", Concurrency: 4})
	require.NoError(t, err)

	state := &UpdateState{
		Checked: map[string]string{
			"mytheme": "1.0.0",
			"current": "2.0.0",
			"broken":  "1.0.0",
			"bogus":   "not-a-version",
		},
		Response: map[string]*UpdateOffer{
			"mytheme":   {NewVersion: "1.2.0", URL: "https://example.com/mytheme"},
			"current":   {NewVersion: "2.0.0"},
			"broken":    {NewVersion: "1.1.0"},
			"bogus":     {NewVersion: "1.0.0"},
			"untracked": {NewVersion: "9.0.0"},
			"nil-offer": nil,
		},
	}

	c.OnUpdateCheck(context.Background(), state)

	require.NotNil(t, state.Response["mytheme"].Changes)
	assert.True(t, state.Response["mytheme"].Changes.OK())
	assert.Equal(t, 5.0, *state.Response["mytheme"].Changes.DiffPercent)

	assert.Nil(t, state.Response["current"].Changes, "no pending update")
	assert.Nil(t, state.Response["bogus"].Changes, "invalid version is skipped")
	assert.Nil(t, state.Response["untracked"].Changes, "package not in checked")

	require.NotNil(t, state.Response["broken"].Changes)
	assert.Equal(t, FailureUpstream, state.Response["broken"].Changes.Failure)

	assert.Equal(t, int32(2), f.posts.Load())
}

func TestPrepareForDisplay(t *testing.T) {
	f := newFakeAPI(t, respond(successBody))
	c, _ := newChecker(t, f)

	state := &UpdateState{
		Checked: map[string]string{"mytheme": "1.0.0", "plain": "1.0.0", "failed": "1.0.0", "same": "3.0.0"},
		Response: map[string]*UpdateOffer{
			"mytheme": {NewVersion: "1.2.0", URL: "https://example.com/d", Changes: &ImpactReport{StatusCode: "200", DiffPercent: diff(5), GalleryURL: "https://x/y"}},
			"plain":   {NewVersion: "1.1.0"},
			"failed":  {NewVersion: "1.1.0", Changes: failedReport(FailureNetwork)},
			"same":    {NewVersion: "3.0.0"},
		},
	}
	listings := map[string]*Listing{
		"mytheme": {Name: "My Theme", Version: "1.0.0"},
		"plain":   {Name: "Plain"},
		"failed":  {Name: "Failed", Version: "1.0.0"},
		"same":    {Name: "Same", Version: "3.0.0"},
		"nooffer": {Name: "No Offer", Version: "1.0.0"},
	}

	c.PrepareForDisplay(listings, state)

	assert.Equal(t,
		BaseNotice("My Theme", "https://example.com/d", "1.2.0")+
			`<p><strong>There is a difference of 5% when updating to version 1.2.0 from 1.0.0. <a href="https://x/y" target="_blank">View changes details</a>.</strong></p>`,
		listings["mytheme"].Update)

	assert.Equal(t, BaseNotice("Plain", "", "1.1.0"), listings["plain"].Update, "installed version falls back to checked")
	assert.Equal(t, BaseNotice("Failed", "", "1.1.0"), listings["failed"].Update, "base notice renders without impact data")
	assert.Empty(t, listings["same"].Update)
	assert.Empty(t, listings["nooffer"].Update)
	assert.Equal(t, int32(0), f.posts.Load(), "display never calls the API")
}

func TestPrepareForDisplayPrefersCheckedVersion(t *testing.T) {
	f := newFakeAPI(t, respond(successBody))
	c, _ := newChecker(t, f)

	state := &UpdateState{
		Checked: map[string]string{"mytheme": "1.1.0"},
		Response: map[string]*UpdateOffer{
			"mytheme": {NewVersion: "1.2.0", Changes: &ImpactReport{StatusCode: "200", DiffPercent: diff(5)}},
		},
	}
	listings := map[string]*Listing{"mytheme": {Name: "My Theme", Version: "1.0.0"}}

	c.PrepareForDisplay(listings, state)

	assert.Contains(t, listings["mytheme"].Update, "when updating to version 1.2.0 from 1.1.0.",
		"the notice names the version the report was computed from")
}
