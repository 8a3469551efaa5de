package telegram

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
)

// blockReplacer rewrites the HTML goldmark emits into the tag subset
// Telegram's HTML parse mode accepts. Block elements become plain
// newlines, headings become bold lines, list items become bullets.
var blockReplacer = strings.NewReplacer(
	"<p>", "",
	"</p>", "\n",
	"<br>", "\n",
	"<br/>", "\n",
	"<br />", "\n",
	"<h1>", "<b>",
	"<h2>", "<b>",
	"<h3>", "<b>",
	"<h4>", "<b>",
	"<h5>", "<b>",
	"<h6>", "<b>",
	"</h1>", "</b>\n",
	"</h2>", "</b>\n",
	"</h3>", "</b>\n",
	"</h4>", "</b>\n",
	"</h5>", "</b>\n",
	"</h6>", "</b>\n",
	"<ul>", "",
	"</ul>", "",
	"<ol>", "",
	"</ol>", "",
	"<li>", "• ",
	"</li>", "\n",
	"<hr>", "\n",
	"<hr/>", "\n",
	"<hr />", "\n",
)

// RenderHTML converts model-produced Markdown into Telegram-flavored
// HTML. Inline tags (b, i, em, strong, code, pre, a, blockquote) pass
// through unchanged since Telegram supports them directly.
func RenderHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	out := blockReplacer.Replace(buf.String())
	return strings.TrimSpace(out), nil
}
