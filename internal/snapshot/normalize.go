// Package snapshot compares rendered pages against golden files.
//
// HTML is normalized first so hydration markers, scoped class hashes and
// script payloads do not churn the goldens. Screenshots are compared pixel
// by pixel with a tolerance.
package snapshot

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	emptyClassAttr  = regexp.MustCompile(`\s+class="\s*"`)
	classAttr       = regexp.MustCompile(`class="([^"]*)"`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	betweenTags     = regexp.MustCompile(`>\s*<`)
	normalizePolicy = newPolicy()
)

// newPolicy keeps the structure and the attributes tests select on, and
// drops comments, scripts, styles and inline handlers.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"html", "head", "title", "body", "main", "header", "footer", "nav", "section", "article", "aside",
		"div", "span", "p", "a", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "dl", "dt", "dd",
		"table", "thead", "tbody", "tr", "th", "td",
		"form", "label", "input", "textarea", "select", "option", "button",
		"strong", "em", "code", "pre", "br", "hr", "img", "svg", "path",
	)
	p.AllowAttrs("id", "class", "role", "title", "name", "type", "value", "placeholder",
		"disabled", "checked", "selected", "readonly", "required", "for").Globally()
	p.AllowAttrs("aria-label", "aria-hidden", "aria-live", "aria-busy").Globally()
	p.AllowDataAttributes()
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("viewBox", "fill", "stroke", "d").OnElements("svg", "path")
	return p
}

// NormalizeHTML returns a stable, line-oriented rendering of html.
func NormalizeHTML(html string) string {
	out := normalizePolicy.Sanitize(html)
	out = classAttr.ReplaceAllStringFunc(out, func(attr string) string {
		m := classAttr.FindStringSubmatch(attr)
		var classes []string
		for _, c := range strings.Fields(m[1]) {
			if !strings.HasPrefix(c, "svelte-") {
				classes = append(classes, c)
			}
		}
		return `class="` + strings.Join(classes, " ") + `"`
	})
	out = emptyClassAttr.ReplaceAllString(out, "")
	out = whitespaceRun.ReplaceAllString(out, " ")
	out = betweenTags.ReplaceAllString(out, ">\n<")
	return strings.TrimSpace(out) + "\n"
}
