package cmd

import (
	"text/template"
)

// Man-page style layout rendered by Command.PrintUsage through a
// tabwriter.
var usageTemplate = template.Must(template.New("usage").Parse(`
NAME
	{{.GetName}}{{with .GetDesc}} - {{.}}{{end}}

SYNOPSIS
	{{.GetName}} {{with .GetSynopsis}}{{.}}{{else}}[<args>]{{end}}
{{with .GetOptionDesc}}
OPTION
{{.}}
{{end}}{{with .GetDetails}}DESCRIPTION
{{.}}
{{end}}{{with .GetExample}}EXAMPLE
{{.}}
{{end}}`))
