// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/samber/oops"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer executes the embedded HTML mail templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses every embedded template. Templates are addressed by
// file name without the .html suffix.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("mail").Option("missingkey=error").ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, oops.Code("MAIL_TEMPLATE_PARSE_FAILED").Wrap(err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes template name with data.
func (r *Renderer) Render(name string, data any) (string, error) {
	t := r.tmpl.Lookup(name + ".html")
	if t == nil {
		return "", oops.Code("MAIL_TEMPLATE_UNKNOWN").With("template", name).Errorf("unknown mail template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", oops.Code("MAIL_RENDER_FAILED").With("template", name).Wrap(err)
	}
	return buf.String(), nil
}
