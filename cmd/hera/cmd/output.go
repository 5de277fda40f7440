package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/oneconcern/heraclitus/pkg/model"
)

var templateFuncs = template.FuncMap{
	"status":     colorStatus,
	"humanSize":  func(size int64) string { return units.HumanSize(float64(size)) },
	"short":      func(h model.Hash) string { return h.Short() },
	"join":       strings.Join,
	"timestamp":  func(v *model.Version) string { return v.CreatedAt.Format(timeFormat) },
	"highlight":  color.CyanString,
	"pins":       pins,
}

const timeFormat = "2006-01-02 15:04:05 MST"

func colorStatus(s model.VersionStatus) string {
	switch s {
	case model.Committed:
		return color.GreenString(s.String())
	case model.Staging:
		return color.YellowString(s.String())
	default:
		return s.String()
	}
}

// pins renders the dependencies of a version
func pins(v *model.Version) string {
	deps := make([]string, 0, len(v.Dependencies))
	for _, d := range v.Dependencies {
		deps = append(deps, d.VersionID)
	}
	return strings.Join(deps, " ")
}

// render executes a template followed by a new line
func render(w io.Writer, t *template.Template, data interface{}) error {
	if t == nil {
		return fmt.Errorf("no output template")
	}
	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("executing template: %w", err)
	}
	_, err := fmt.Fprintln(w)
	return err
}
