package widget

import (
	"html"
	"strings"
)

var lineBreaks = strings.NewReplacer("\r\n", "<br>", "\n", "<br>")

// Markup renders message text for an HTML host. Text is always treated as
// plain text: markup-significant characters are escaped and only newlines
// become line breaks.
func Markup(text string) string {
	return lineBreaks.Replace(html.EscapeString(text))
}

// Lines splits message text into the visual lines a terminal host prints.
func Lines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
