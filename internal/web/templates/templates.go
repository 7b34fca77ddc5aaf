// Package templates renders the HTML pages of the model library.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/printshelf/internal/profile"
	"github.com/JonMunkholm/printshelf/internal/store"
)

// Page wraps body in the site layout.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\">")
		b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">")
		fmt.Fprintf(&b, "<title>%s | PrintShelf</title>", templ.EscapeString(title))
		b.WriteString("</head><body><header><a href=\"/\">PrintShelf</a></header><main>")
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</main></body></html>")
		return err
	})
}

// ModelList renders a grid of model cards.
func ModelList(models []store.Model) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		if len(models) == 0 {
			b.WriteString("<p class=\"empty\">No models yet.</p>")
		} else {
			b.WriteString("<ul class=\"models\">")
			for _, m := range models {
				fmt.Fprintf(&b, "<li><a href=\"/models/%s\">", m.ID)
				if m.Thumbnail != "" {
					fmt.Fprintf(&b, "<img src=\"/files/thumbnails/%s\" alt=\"\">", templ.EscapeString(m.Thumbnail))
				}
				fmt.Fprintf(&b, "<span>%s</span></a>", templ.EscapeString(m.Title))
				if m.Category != "" {
					fmt.Fprintf(&b, " <small>%s</small>", templ.EscapeString(m.Category))
				}
				b.WriteString("</li>")
			}
			b.WriteString("</ul>")
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ModelDetail renders one model with its print profile summary.
func ModelDetail(m *store.Model, sum profile.Summary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, "<article><h1>%s</h1>", templ.EscapeString(m.Title))
		if m.Thumbnail != "" {
			fmt.Fprintf(&b, "<img src=\"/files/thumbnails/%s\" alt=\"%s\">",
				templ.EscapeString(m.Thumbnail), templ.EscapeString(m.Title))
		}
		if m.Description != "" {
			fmt.Fprintf(&b, "<p>%s</p>", templ.EscapeString(m.Description))
		}
		if len(m.Tags) > 0 {
			b.WriteString("<ul class=\"tags\">")
			for _, t := range m.Tags {
				fmt.Fprintf(&b, "<li>%s</li>", templ.EscapeString(t))
			}
			b.WriteString("</ul>")
		}

		if sum.IsEmpty() {
			b.WriteString("<p class=\"no-profile\">No print profile found in this project.</p>")
		} else {
			b.WriteString("<dl class=\"profile\">")
			for _, row := range summaryRows(sum) {
				fmt.Fprintf(&b, "<dt>%s</dt><dd>%s</dd>", row[0], templ.EscapeString(row[1]))
			}
			b.WriteString("</dl>")
		}

		fmt.Fprintf(&b, "<p class=\"stats\">%d downloads, %d views</p>", m.Downloads, m.Views)
		fmt.Fprintf(&b, "<form method=\"post\" action=\"/api/models/%s/download\"><button>Download</button></form>", m.ID)
		b.WriteString("</article>")

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ErrorAlert renders a user-facing error message.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, "<div class=\"alert\" role=\"alert\"><p>%s</p>", templ.EscapeString(message))
		if action != "" {
			fmt.Fprintf(&b, "<p>%s</p>", templ.EscapeString(action))
		}
		if code != "" {
			fmt.Fprintf(&b, "<small>Error code: %s</small>", templ.EscapeString(code))
		}
		b.WriteString("</div>")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// summaryRows lists the set summary fields in display order.
func summaryRows(sum profile.Summary) [][2]string {
	all := [][2]string{
		{"Layer height", sum.LayerHeight},
		{"Infill", sum.Infill},
		{"Supports", sum.Supports},
		{"Nozzle", sum.NozzleTemp},
		{"Bed", sum.BedTemp},
		{"Speed", sum.Speed},
	}
	rows := all[:0]
	for _, r := range all {
		if r[1] != "" {
			rows = append(rows, r)
		}
	}
	return rows
}
