package updatecheck

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BaseNotice renders the "new version available" paragraph shown for every
// pending update, with or without impact data.
func BaseNotice(name, detailsURL, newVersion string) string {
	strong := element(atom.Strong)
	if detailsURL == "" {
		strong.AppendChild(text("There is a new version of " + name + " available (version " + newVersion + ")."))
		return render(paragraph(strong))
	}

	strong.AppendChild(text("There is a new version of " + name + " available. "))
	link := element(atom.A,
		html.Attribute{Key: "href", Val: detailsURL},
		html.Attribute{Key: "class", Val: "thickbox open-plugin-details-modal"},
		html.Attribute{Key: "aria-label", Val: "View " + name + " version " + newVersion + " details"},
	)
	link.AppendChild(text("View version " + newVersion + " details"))
	strong.AppendChild(link)
	strong.AppendChild(text("."))
	return render(paragraph(strong))
}

// Decorate appends the impact paragraph to notice when report is a
// successful check. Otherwise notice is returned unchanged.
func Decorate(notice string, candidate UpdateCandidate, report *ImpactReport) string {
	if !report.OK() || report.DiffPercent == nil {
		return notice
	}

	strong := element(atom.Strong)
	strong.AppendChild(text("There is a difference of " + formatPercent(*report.DiffPercent) +
		"% when updating to version " + candidate.AvailableVersion +
		" from " + candidate.InstalledVersion + "."))

	if report.GalleryURL != "" {
		strong.AppendChild(text(" "))
		link := element(atom.A,
			html.Attribute{Key: "href", Val: report.GalleryURL},
			html.Attribute{Key: "target", Val: "_blank"},
		)
		link.AppendChild(text("View changes details"))
		strong.AppendChild(link)
		strong.AppendChild(text("."))
	}

	return notice + render(paragraph(strong))
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func paragraph(children ...*html.Node) *html.Node {
	p := element(atom.P)
	for _, c := range children {
		p.AppendChild(c)
	}
	return p
}

func render(n *html.Node) string {
	var sb strings.Builder
	// Render only fails on writer errors; strings.Builder never returns one.
	_ = html.Render(&sb, n)
	return sb.String()
}
