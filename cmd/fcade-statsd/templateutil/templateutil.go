package templateutil

import (
	"embed"
	"fmt"
	"html/template"
	"path"
	"time"
)

type TemplateGroup struct {
	Files []string
	Add   func(t *template.Template)
}

func formatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second

	return d.String()
}

func formatMilli(ms int64) string {
	if ms == 0 {
		return ""
	}

	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}

func ParseFS(fs embed.FS, groups []TemplateGroup) error {
	funcMap := template.FuncMap{
		"formatDuration": formatDuration,
		"formatMilli":    formatMilli,
	}

	for _, group := range groups {
		name := path.Base(group.Files[0])
		t := template.New(name).Funcs(funcMap)

		t, err := t.ParseFS(fs, group.Files...)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}

		group.Add(t)
	}

	return nil
}
