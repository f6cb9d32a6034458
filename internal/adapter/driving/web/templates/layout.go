// Package templates holds the templ components that make up the HTML pages.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Layout wraps body in the shared HTML document shell.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<link rel="stylesheet" href="/static/style.css">
</head>
<body>
`, templ.EscapeString(title)); err != nil {
			return err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		_, err := io.WriteString(w, `<script src="/static/app.js" defer></script>
</body>
</html>
`)
		return err
	})
}

// LandingData is the view model for the landing page.
type LandingData struct {
	Title     string
	AboutHTML string // Already sanitized.
	Projects  int
}

// Landing renders the page header, the about blurb and an empty project list
// that the page script fills from the JSON API.
func Landing(data LandingData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<header>
<h1>%s</h1>
<p id="projects-status">%d projects catalogued</p>
</header>
<main>
<section class="about">
`, templ.EscapeString(data.Title), data.Projects); err != nil {
			return err
		}

		if err := templ.Raw(data.AboutHTML).Render(ctx, w); err != nil {
			return err
		}

		_, err := io.WriteString(w, `</section>
<ol id="projects"></ol>
</main>
`)
		return err
	})
}
