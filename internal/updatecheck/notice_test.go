package updatecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func diff(v float64) *float64 { return &v }

func TestDecorateSuccess(t *testing.T) {
	report := &ImpactReport{StatusCode: "200", DiffPercent: diff(5), GalleryURL: "https://x/y"}

	got := Decorate("<p>base</p>", example, report)
	assert.Equal(t,
		`<p>base</p><p><strong>There is a difference of 5% when updating to version 1.2.0 from 1.0.0. `+
			`<a href="https://x/y" target="_blank">View changes details</a>.</strong></p>`,
		got)
}

func TestDecorateWithoutGallery(t *testing.T) {
	report := &ImpactReport{StatusCode: "200", DiffPercent: diff(12.75)}

	got := Decorate("", example, report)
	assert.Equal(t, `<p><strong>There is a difference of 12.75% when updating to version 1.2.0 from 1.0.0.</strong></p>`, got)
}

func TestDecorateLeavesNoticeForMissingImpact(t *testing.T) {
	const notice = "<p>There is a new version.</p>"

	assert.Equal(t, notice, Decorate(notice, example, nil))
	assert.Equal(t, notice, Decorate(notice, example, failedReport(FailureNetwork)))
	assert.Equal(t, notice, Decorate(notice, example, &ImpactReport{StatusCode: "404", DiffPercent: diff(3)}))
	assert.Equal(t, notice, Decorate(notice, example, &ImpactReport{StatusCode: "200"}))
}

func TestDecorateEscapesUpstreamValues(t *testing.T) {
	report := &ImpactReport{StatusCode: "200", DiffPercent: diff(1), GalleryURL: `https://x/"><script>alert(1)</script>`}

	got := Decorate("", example, report)
	assert.NotContains(t, got, "<script>")
	assert.Contains(t, got, `href="https://x/&#34;&gt;&lt;script&gt;alert(1)&lt;/script&gt;"`)
}

func TestBaseNotice(t *testing.T) {
	got := BaseNotice("My Theme", "https://example.com/details", "1.2.0")
	assert.Equal(t,
		`<p><strong>There is a new version of My Theme available. `+
			`<a href="https://example.com/details" class="thickbox open-plugin-details-modal" aria-label="View My Theme version 1.2.0 details">View version 1.2.0 details</a>.</strong></p>`,
		got)
}

func TestBaseNoticeWithoutURL(t *testing.T) {
	assert.Equal(t,
		`<p><strong>There is a new version of Tom &amp; Jerry available (version 2.0.0).</strong></p>`,
		BaseNotice("Tom & Jerry", "", "2.0.0"))
}
