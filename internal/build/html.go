package build

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var scriptCloser = strings.NewReplacer("</script", `<\/script`, "</SCRIPT", `<\/SCRIPT`)

// WriteHTML writes a minimal HTML document that runs script inline.
func WriteHTML(w io.Writer, title, script string) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	doc.AppendChild(root)

	head := element(atom.Head)
	meta := element(atom.Meta)
	meta.Attr = []html.Attribute{{Key: "charset", Val: "utf-8"}}
	head.AppendChild(meta)
	titleEl := element(atom.Title)
	titleEl.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	head.AppendChild(titleEl)
	root.AppendChild(head)

	body := element(atom.Body)
	scriptEl := element(atom.Script)
	scriptEl.AppendChild(&html.Node{Type: html.TextNode, Data: "\n" + scriptCloser.Replace(script) + "\n"})
	body.AppendChild(scriptEl)
	root.AppendChild(body)

	if err := html.Render(w, doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}
