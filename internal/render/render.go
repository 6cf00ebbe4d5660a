// Package render generates config artifacts from the templates shipped in
// the container image. A template variable that is missing from the data is
// always an error: a silently half-substituted nginx conf or Dockerfile is
// worse than a failed bootstrap.
package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// String renders template text against data. Any variable referenced by
// the template but absent from data fails the render.
func String(text string, data any) (string, error) {
	tmpl, err := template.New("").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// File reads the template at path and renders it against data.
func File(path string, data any) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return String(string(content), data)
}

// Render renders templatePath against data and writes the result to
// outputPath, creating parent directories as needed. An existing file at
// outputPath is overwritten. The render happens fully in memory first, so
// a failed render never leaves a partially written artifact behind.
func Render(templatePath, outputPath string, data any) error {
	out, err := File(templatePath, data)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", templatePath, err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("creating output dir for %s: %w", outputPath, err)
	}
	if err := os.WriteFile(outputPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	return nil
}
