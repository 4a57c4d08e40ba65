// Package templates renders message bodies. HTML parts go through
// html/template for escaping, text parts through text/template, and both may
// call per-render functions such as translation that only exist while a
// message is being sent.
package templates

import (
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	texttemplate "text/template"
)

// FuncMap maps template function names to implementations.
type FuncMap = map[string]any

// Renderer renders a named template with data. The funcs map carries
// functions bound to the message being rendered and overrides any function
// registered with the same name at construction time.
type Renderer interface {
	RenderHTML(name string, data any, funcs FuncMap) (string, error)
	RenderText(name string, data any, funcs FuncMap) (string, error)
}

// FSRenderer loads templates from a filesystem, usually an embed.FS. Files
// ending in ".html.tmpl" become HTML templates, every other ".tmpl" file
// becomes a text template. Templates are addressed by base filename.
type FSRenderer struct {
	html *template.Template
	text *texttemplate.Template
}

// NewFSRenderer parses every template under fsys. The extra funcs become
// available to all templates, on top of the built-in "t" and "absolute"
// which the sending pipeline rebinds per message.
func NewFSRenderer(fsys fs.FS, extra FuncMap) (*FSRenderer, error) {
	var htmlFiles, textFiles []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tmpl") {
			return nil
		}
		if strings.HasSuffix(path, ".html.tmpl") {
			htmlFiles = append(htmlFiles, path)
		} else {
			textFiles = append(textFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan templates: %w", err)
	}

	funcs := placeholderFuncs()
	for name, fn := range extra {
		funcs[name] = fn
	}

	r := &FSRenderer{}

	if len(htmlFiles) > 0 {
		r.html, err = template.New("html").Funcs(funcs).ParseFS(fsys, htmlFiles...)
		if err != nil {
			return nil, fmt.Errorf("parse HTML templates: %w", err)
		}
	}
	if len(textFiles) > 0 {
		r.text, err = texttemplate.New("text").Funcs(funcs).ParseFS(fsys, textFiles...)
		if err != nil {
			return nil, fmt.Errorf("parse text templates: %w", err)
		}
	}

	return r, nil
}

// placeholderFuncs keeps parsing happy for functions that only get their
// real implementation at render time.
func placeholderFuncs() FuncMap {
	return FuncMap{
		"t":        func(key string, args ...any) string { return key },
		"absolute": func(ref string) (string, error) { return ref, nil },
	}
}

// RenderHTML renders an HTML template by base filename.
func (r *FSRenderer) RenderHTML(name string, data any, funcs FuncMap) (string, error) {
	if r.html == nil {
		return "", fmt.Errorf("no HTML template named %q", name)
	}

	// Execute a clone, never the original: html/template forbids Clone
	// after execution, and per-render funcs must not leak between sends.
	root, err := r.html.Clone()
	if err != nil {
		return "", fmt.Errorf("clone HTML templates: %w", err)
	}
	if len(funcs) > 0 {
		root = root.Funcs(funcs)
	}

	t := root.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("no HTML template named %q", name)
	}

	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %q: %w", name, err)
	}
	return buf.String(), nil
}

// RenderText renders a text template by base filename.
func (r *FSRenderer) RenderText(name string, data any, funcs FuncMap) (string, error) {
	if r.text == nil {
		return "", fmt.Errorf("no text template named %q", name)
	}

	root, err := r.text.Clone()
	if err != nil {
		return "", fmt.Errorf("clone text templates: %w", err)
	}
	if len(funcs) > 0 {
		root = root.Funcs(funcs)
	}

	t := root.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("no text template named %q", name)
	}

	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %q: %w", name, err)
	}
	return buf.String(), nil
}
