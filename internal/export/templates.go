package export

import (
	"bytes"
	"html/template"
)

// TemplatePage holds one rendered page for the export template.
type TemplatePage struct {
	Number   int
	WidthIn  float64
	HeightIn float64
	SVG      template.HTML
}

// TemplateData holds data for the export template.
type TemplateData struct {
	Title    string
	WidthIn  float64
	HeightIn float64
	Pages    []TemplatePage
}

var pageTemplate = template.Must(template.New("pages").Parse(pagesTemplate))

// RenderPagesHTML renders paginated annotation overlays as a print-ready page.
func RenderPagesHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const pagesTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    @page { size: {{.WidthIn}}in {{.HeightIn}}in; margin: 0; }
    html, body { margin: 0; padding: 0; }
    .page { page-break-after: always; overflow: hidden; width: {{.WidthIn}}in; height: {{.HeightIn}}in; }
    .page:last-child { page-break-after: auto; }
    svg { display: block; width: 100%; height: 100%; }
  </style>
</head>
<body>
{{range .Pages}}  <div class="page">{{.SVG}}</div>
{{end}}</body>
</html>`
