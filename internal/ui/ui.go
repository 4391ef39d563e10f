// Package ui renders the hangout desktop as templ components.
package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

const baseStyle = `
body{margin:0;font-family:system-ui,sans-serif;background:#1d1f2b;color:#e8e8f0;overflow:hidden}
.desktop{position:relative;width:100vw;height:100vh}
.window{position:absolute;display:flex;flex-direction:column;background:#2a2d3d;border:1px solid #44485e;border-radius:8px;box-shadow:0 6px 24px #0008}
.window.minimized{display:none}
.titlebar{display:flex;align-items:center;justify-content:space-between;padding:4px 8px;background:#35394d;cursor:move;user-select:none;border-radius:8px 8px 0 0}
.titlebar button{background:none;border:0;color:inherit;cursor:pointer}
.body{flex:1;overflow:auto;padding:8px}
.message{padding:2px 0}.message .author{font-weight:600;margin-right:6px}
.post{border-bottom:1px solid #44485e;padding:6px 0}
.flash{padding:6px 10px;border-radius:4px}.flash.error{background:#6b2631}.flash.info{background:#264f6b}
.context-menu{position:fixed;background:#2a2d3d;border:1px solid #44485e;border-radius:6px;min-width:160px;z-index:100000}
.context-menu button{display:block;width:100%;text-align:left;background:none;border:0;color:inherit;padding:6px 10px}
.login{max-width:320px;margin:15vh auto;display:flex;flex-direction:column;gap:8px}
`

func write(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

func esc(s string) string {
	return templ.EscapeString(s)
}

func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w,
			"<!doctype html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>", esc(title), "</title>",
			"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">",
			"<style>", baseStyle, "</style>",
			"<script type=\"module\" src=\"", datastarScript, "\"></script></head><body>",
		); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		return write(w, "</body></html>")
	})
}

// Flash is the feedback fragment swapped into #flash.
func Flash(message, kind string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if kind != "error" {
			kind = "info"
		}
		return write(w, `<div id="flash" class="flash `, kind, `">`, esc(message), `</div>`)
	})
}

func LoginPage(errorMessage string) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<form class="login" method="post" action="/login"><h1>Ani Hangout</h1>`)
		if errorMessage != "" {
			fmt.Fprintf(&b, `<div id="flash" class="flash error">%s</div>`, esc(errorMessage))
		}
		b.WriteString(`<input name="email" type="email" placeholder="email" required autofocus>`)
		b.WriteString(`<input name="password" type="password" placeholder="password" required>`)
		b.WriteString(`<button type="submit">Sign in</button></form>`)
		return write(w, b.String())
	})
	return page("Sign in · Ani Hangout", body)
}
