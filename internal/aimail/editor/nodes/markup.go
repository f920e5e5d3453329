package nodes

import (
	"fmt"
	"html"
	"strings"
)

type markupBuilder = strings.Builder

// Markup экспортирует ноду в простую HTML-разметку, не зависящую от
// представления в хост-редакторе.
func Markup(n Node) string {
	var b markupBuilder
	writeMarkup(n, &b)
	return b.String()
}

func writeMarkup(n Node, b *markupBuilder) {
	def, ok := registry[n.Kind()]
	if !ok {
		return
	}
	def.markup(n, b)
}

func markupChildren(children []Node, b *markupBuilder) {
	for _, child := range children {
		writeMarkup(child, b)
	}
}

func markupParagraph(n Node, b *markupBuilder) {
	p := n.(*Paragraph)
	b.WriteString("<p>")
	markupChildren(p.Children, b)
	b.WriteString("</p>")
}

func markupHeading(n Node, b *markupBuilder) {
	h := n.(*Heading)
	fmt.Fprintf(b, "<h%d>", h.Level)
	markupChildren(h.Children, b)
	fmt.Fprintf(b, "</h%d>", h.Level)
}

// markupText оборачивает экранированный текст в теги форматирования.
// Мягкие переносы строки внутри фрагмента превращаются в <br>.
func markupText(n Node, b *markupBuilder) {
	t := n.(*Text)

	var open, close string
	wrap := func(tag string) {
		open += "<" + tag + ">"
		close = "</" + tag + ">" + close
	}
	if t.Format.Has(FormatBold) {
		wrap("strong")
	}
	if t.Format.Has(FormatItalic) {
		wrap("em")
	}
	if t.Format.Has(FormatUnderline) {
		wrap("u")
	}
	if t.Format.Has(FormatStrike) {
		wrap("s")
	}
	if t.Format.Has(FormatCode) {
		wrap("code")
	}

	content := html.EscapeString(t.Content)
	content = strings.ReplaceAll(content, "\n", "<br>")

	b.WriteString(open)
	b.WriteString(content)
	b.WriteString(close)
}

func markupList(n Node, b *markupBuilder) {
	l := n.(*List)
	tag := "ul"
	if l.Ordered {
		tag = "ol"
	}
	b.WriteString("<" + tag + ">")
	markupChildren(l.Children, b)
	b.WriteString("</" + tag + ">")
}

func markupListItem(n Node, b *markupBuilder) {
	li := n.(*ListItem)
	b.WriteString("<li>")
	markupChildren(li.Children, b)
	b.WriteString("</li>")
}

func markupDivider(n Node, b *markupBuilder) {
	b.WriteString("<hr>")
}

func markupImage(n Node, b *markupBuilder) {
	img := n.(*Image)
	// Незавершенная загрузка не попадает в экспорт: у заглушки нет src
	if img.Uploading || img.Src == "" {
		return
	}
	b.WriteString(`<img src="` + html.EscapeString(img.Src) + `"`)
	if img.Alt != "" {
		b.WriteString(` alt="` + html.EscapeString(img.Alt) + `"`)
	}
	if img.Width > 0 {
		fmt.Fprintf(b, ` width="%d"`, img.Width)
	}
	if img.Height > 0 {
		fmt.Fprintf(b, ` height="%d"`, img.Height)
	}
	b.WriteString(">")
}

func markupButton(n Node, b *markupBuilder) {
	btn := n.(*Button)
	b.WriteString(`<a class="composer-button" href="#">` + html.EscapeString(btn.Text) + `</a>`)
}
