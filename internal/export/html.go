// ABOUTME: HTML reading list export grouped by project
// ABOUTME: Reference notes are Markdown and rendered with goldmark

package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/refforge/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var readingListTmpl = template.Must(template.ParseFS(templateFS, "templates/reading_list.html"))

type htmlReference struct {
	store.Reference
	AuthorList string
	Notes      template.HTML
	Finished   bool
}

type htmlProject struct {
	Name       string
	Color      template.CSS
	References []htmlReference
}

// WriteHTML renders refs as a standalone HTML page grouped by project, in
// project order. References whose project is unknown go under "Unassigned".
func WriteHTML(w io.Writer, title string, projects []store.Project, refs []store.Reference, generated time.Time) error {
	groups := make([]htmlProject, 0, len(projects)+1)
	index := make(map[string]int, len(projects))
	for _, p := range projects {
		index[p.ID] = len(groups)
		groups = append(groups, htmlProject{Name: p.Name, Color: cssColor(p.Color)})
	}
	unassigned := -1

	for _, r := range refs {
		hr, err := toHTMLReference(r)
		if err != nil {
			return err
		}
		i, ok := index[r.ProjectID]
		if !ok {
			if unassigned < 0 {
				unassigned = len(groups)
				groups = append(groups, htmlProject{Name: "Unassigned"})
			}
			i = unassigned
		}
		groups[i].References = append(groups[i].References, hr)
	}

	nonEmpty := groups[:0]
	for _, g := range groups {
		if len(g.References) > 0 {
			nonEmpty = append(nonEmpty, g)
		}
	}

	data := struct {
		Title     string
		Generated string
		Projects  []htmlProject
		Count     int
	}{
		Title:     title,
		Generated: generated.Format("2006-01-02 15:04"),
		Projects:  nonEmpty,
		Count:     len(refs),
	}

	if err := readingListTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering reading list: %w", err)
	}
	return nil
}

func toHTMLReference(r store.Reference) (htmlReference, error) {
	hr := htmlReference{
		Reference:  r,
		AuthorList: strings.Join(r.Authors, ", "),
		Finished:   r.Status == store.StatusFinished,
	}
	if r.Notes != "" {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(r.Notes), &buf); err != nil {
			return htmlReference{}, fmt.Errorf("rendering notes for %s: %w", r.ID, err)
		}
		// goldmark escapes raw HTML unless WithUnsafe is set.
		hr.Notes = template.HTML(buf.String())
	}
	return hr, nil
}

var colorPattern = regexp.MustCompile(`^[#a-zA-Z0-9(),.% ]+$`)

// cssColor passes through color tokens like "#fa0" or "hsl(210, 80%, 60%)"
// and drops anything else.
func cssColor(c string) template.CSS {
	if !colorPattern.MatchString(c) {
		return "currentColor"
	}
	return template.CSS(c)
}
