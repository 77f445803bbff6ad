package server

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

type pageData struct {
	Title     string
	Entry     string
	Version   string
	Modules   []string
	Error     string
	HasBundle bool
}

const reloadScript = `(function () {
  var scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
  var ws = new WebSocket(scheme + location.host + '/ws');
  ws.onmessage = function (event) {
    var msg = JSON.parse(event.data);
    if (msg.type === 'reload') { location.reload(); }
    if (msg.type === 'error') { console.error('[cjsbundle] ' + msg.content); }
  };
})();`

func indexHandler(data pageData) *templ.ComponentHandler {
	return templ.Handler(indexPage(data))
}

// indexPage runs the current bundle and lists its modules.
func indexPage(data pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
		b.WriteString("<meta charset=\"utf-8\">\n")
		b.WriteString("<title>" + templ.EscapeString(data.Title) + "</title>\n")
		b.WriteString("</head>\n<body>\n")
		b.WriteString("<header><h1>" + templ.EscapeString(data.Entry) + "</h1>")
		b.WriteString("<small>cjsbundle " + templ.EscapeString(data.Version) + "</small></header>\n")

		if data.Error != "" {
			b.WriteString("<pre id=\"build-error\">" + templ.EscapeString(data.Error) + "</pre>\n")
		}

		if len(data.Modules) > 0 {
			b.WriteString("<ul id=\"modules\">\n")
			for _, id := range data.Modules {
				b.WriteString("<li>" + templ.EscapeString(id) + "</li>\n")
			}
			b.WriteString("</ul>\n")
		}

		if data.HasBundle {
			b.WriteString("<script src=\"/bundle.js\"></script>\n")
		}
		b.WriteString("<script>" + reloadScript + "</script>\n")
		b.WriteString("</body>\n</html>\n")

		_, err := io.WriteString(w, b.String())
		return err
	})
}
