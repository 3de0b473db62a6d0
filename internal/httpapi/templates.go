package httpapi

import (
	_ "embed"
	"html/template"
)

//go:embed templates/kiosk.tmpl
var kioskTemplateHTML string

//go:embed templates/admin.tmpl
var adminTemplateHTML string

//go:embed templates/login.tmpl
var loginTemplateHTML string

const (
	kioskTemplateName = "kiosk"
	adminTemplateName = "admin"
	loginTemplateName = "login"
)

func parseTemplate(name string, source string) *template.Template {
	return template.Must(template.New(name).Funcs(templateFunctions).Parse(source))
}
