package export

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var documentTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"safeHTML": func(s string) template.HTML { return template.HTML(s) },
	}

	content, err := templateFS.ReadFile("templates/document.html")
	if err != nil {
		documentTemplate = template.Must(template.New("document").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}
	documentTemplate = template.Must(template.New("document").Funcs(funcMap).Parse(string(content)))
}

type standaloneData struct {
	Title       string
	ContentHTML string
}

// RenderStandaloneHTML wraps a rendered fragment in a full styled
// HTML document.
func RenderStandaloneHTML(title, fragment string) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, standaloneData{Title: title, ContentHTML: fragment}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load.
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
{{.ContentHTML | safeHTML}}
</body>
</html>`
