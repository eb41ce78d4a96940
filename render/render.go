// Package render turns message text into HTML that is safe to inject into a page.
package render

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

const extensions = blackfriday.CommonExtensions | blackfriday.HardLineBreak

var policy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

// HTML renders markdown text and strips anything that could run in the browser.
func HTML(text string) string {
	unsafe := blackfriday.Run([]byte(text), blackfriday.WithExtensions(extensions))
	return strings.TrimSpace(string(policy.SanitizeBytes(unsafe)))
}
