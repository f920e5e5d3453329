package convert

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	policy "github.com/aisa-it/aimail/aimail.go/internal/aimail/redactor-policy"
)

// ImportHTML разбирает внешний HTML в список блоков. Контент сначала
// проходит очистку политикой безопасности, затем делится на блоки по
// тегам верхнего уровня. Неразбираемый HTML деградирует до простого
// текста, а не роняет импорт.
func ImportHTML(raw string) []ParsedBlock {
	clean := policy.CleanHTML(raw)
	if strings.TrimSpace(clean) == "" {
		return nil
	}

	rootNode, err := html.Parse(strings.NewReader(clean))
	if err != nil {
		return ImportText(raw)
	}

	var blocks []ParsedBlock
	for el := getBody(rootNode).FirstChild; el != nil; el = el.NextSibling {
		blocks = append(blocks, parseBlockElement(el)...)
	}
	return blocks
}

func parseBlockElement(el *html.Node) []ParsedBlock {
	if el.Type == html.TextNode {
		return textBlocks(el.Data)
	}
	if el.Type != html.ElementNode {
		return nil
	}

	switch el.Data {
	case "h1", "h2", "h3":
		t := BlockHeading1
		switch el.Data {
		case "h2":
			t = BlockHeading2
		case "h3":
			t = BlockHeading3
		}
		return []ParsedBlock{{Type: t, Content: textOf(el)}}
	case "ul", "ol":
		return parseListBlocks(el)
	case "hr":
		return []ParsedBlock{{Type: BlockDivider}}
	case "img":
		if b := parseImageBlock(el); b != nil {
			return []ParsedBlock{*b}
		}
		return nil
	case "a", "button":
		if el.Data == "button" || getAttrValue("class", el.Attr) == "composer-button" {
			if text := textOf(el); text != "" {
				return []ParsedBlock{{Type: BlockButton, Content: text}}
			}
			return nil
		}
		return textBlocks(textOf(el))
	default:
		// Параграфы и прочие контейнеры: изображения выносятся в
		// отдельные блоки, остальное содержимое становится текстом
		var blocks []ParsedBlock
		var text strings.Builder
		flush := func() {
			blocks = append(blocks, textBlocks(text.String())...)
			text.Reset()
		}
		iterNodes(el, func(child *html.Node) bool {
			switch {
			case child.Type == html.TextNode:
				text.WriteString(child.Data)
			case child.Type == html.ElementNode && child.Data == "img":
				flush()
				if b := parseImageBlock(child); b != nil {
					blocks = append(blocks, *b)
				}
				return true
			case child.Type == html.ElementNode && child.Data == "br":
				text.WriteString("\n")
			}
			return false
		})
		flush()
		return blocks
	}
}

func parseListBlocks(el *html.Node) []ParsedBlock {
	t := BlockList
	if el.Data == "ol" {
		t = BlockOrderedList
	}
	var blocks []ParsedBlock
	for li := el.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		blocks = append(blocks, ParsedBlock{Type: t, Content: textOf(li)})
	}
	return blocks
}

func parseImageBlock(el *html.Node) *ParsedBlock {
	src := getAttrValue("src", el.Attr)
	if src == "" {
		return nil
	}
	t := BlockImage
	if strings.HasSuffix(strings.ToLower(src), ".gif") {
		t = BlockGif
	}
	width, _ := strconv.Atoi(getAttrValue("width", el.Attr))
	height, _ := strconv.Atoi(getAttrValue("height", el.Attr))
	return &ParsedBlock{
		Type: t,
		Metadata: &BlockMeta{
			Src:    src,
			Alt:    getAttrValue("alt", el.Attr),
			Width:  width,
			Height: height,
		},
	}
}

// textBlocks превращает сырой текст в блоки: строка из одних дефисов или
// звездочек - разделитель, непустой текст - текстовый блок.
func textBlocks(raw string) []ParsedBlock {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	if text == "---" || text == "***" {
		return []ParsedBlock{{Type: BlockDivider}}
	}
	return []ParsedBlock{{Type: BlockText, Content: text}}
}

func textOf(root *html.Node) string {
	var b strings.Builder
	iterNodes(root, func(child *html.Node) bool {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
		}
		return false
	})
	return strings.TrimSpace(b.String())
}

func findElementByTagName(rootNode *html.Node, tagName string) *html.Node {
	var el *html.Node
	iterNodes(rootNode, func(child *html.Node) bool {
		if child.Type == html.ElementNode && child.Data == tagName {
			el = child
			return true
		}
		return false
	})
	return el
}

func getBody(rootNode *html.Node) *html.Node {
	return findElementByTagName(rootNode, "body")
}

func iterNodes(node *html.Node, f func(child *html.Node) bool) {
	for p := node.FirstChild; p != nil; p = p.NextSibling {
		if f(p) {
			continue
		}
		iterNodes(p, f)
	}
}

func getAttrValue(key string, attrs []html.Attribute) string {
	for _, attr := range attrs {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
