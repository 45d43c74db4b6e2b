package server

import (
	_ "embed"
	"html/template"
)

//go:embed templates/callback.html
var callbackPageTemplateHTML string

var callbackPageTemplate = template.Must(template.New("callback").Parse(callbackPageTemplateHTML))

// CallbackPageData feeds the fragment relay page. The URL fragment never
// reaches the server, so token-pair flows need one hop through the browser:
// the page reflects location.hash into a query string against CompletePath.
type CallbackPageData struct {
	CompletePath string
}
