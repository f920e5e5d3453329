// Пакет convert - конвейер преобразования контента: внешний HTML или
// простой текст разбирается в упорядоченный список типизированных блоков,
// блоки материализуются в ноды документа, а дерево документа экспортируется
// обратно в HTML тела письма. Импорт и экспорт - независимые направления
// и не обязаны быть точными обратными друг другу.
package convert

import (
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
)

// BlockType - тип разобранного блока.
type BlockType string

const (
	BlockText        BlockType = "text"
	BlockHeading1    BlockType = "heading1"
	BlockHeading2    BlockType = "heading2"
	BlockHeading3    BlockType = "heading3"
	BlockList        BlockType = "list"
	BlockOrderedList BlockType = "orderedlist"
	BlockImage       BlockType = "image"
	BlockGif         BlockType = "gif"
	BlockDivider     BlockType = "divider"
	BlockButton      BlockType = "button"
)

// BlockMeta - метаданные медиа-блоков.
type BlockMeta struct {
	Src    string `json:"src,omitempty"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ParsedBlock - промежуточное, слабо типизированное представление блока.
// Живет только между разбором внешнего контента и материализацией нод.
type ParsedBlock struct {
	Type     BlockType  `json:"type"`
	Content  string     `json:"content"`
	Metadata *BlockMeta `json:"metadata,omitempty"`
}

// Materialize превращает блоки в ноды документа. Единственный switch по
// типу блока; заголовки и элементы списков оборачивают непустой текст
// ровно в один текстовый фрагмент. Подряд идущие блоки одного типа списка
// собираются в один узел списка.
func Materialize(blocks []ParsedBlock) []nodes.Node {
	out := make([]nodes.Node, 0, len(blocks))

	var list *nodes.List
	flushList := func() { list = nil }

	appendListItem := func(ordered bool, content string) {
		if list == nil || list.Ordered != ordered {
			list = nodes.NewList(ordered)
			out = append(out, list)
		}
		list.Children = append(list.Children, nodes.NewListItem(inlineText(content)...))
	}

	for _, block := range blocks {
		switch block.Type {
		case BlockHeading1, BlockHeading2, BlockHeading3:
			flushList()
			out = append(out, nodes.NewHeading(headingLevel(block.Type), inlineText(block.Content)...))
		case BlockList:
			appendListItem(false, block.Content)
		case BlockOrderedList:
			appendListItem(true, block.Content)
		case BlockImage, BlockGif:
			flushList()
			meta := block.Metadata
			if meta == nil {
				meta = &BlockMeta{}
			}
			if block.Type == BlockGif {
				out = append(out, nodes.NewGif(meta.Src, meta.Alt, meta.Width, meta.Height))
			} else {
				out = append(out, nodes.NewImage(meta.Src, meta.Alt, meta.Width, meta.Height))
			}
		case BlockDivider:
			flushList()
			out = append(out, nodes.NewDivider())
		case BlockButton:
			flushList()
			out = append(out, nodes.NewButton(block.Content))
		default:
			flushList()
			out = append(out, nodes.NewParagraph(inlineText(block.Content)...))
		}
	}
	return out
}

func inlineText(content string) []nodes.Node {
	if content == "" {
		return nil
	}
	return []nodes.Node{nodes.NewText(content, 0)}
}

func headingLevel(t BlockType) int {
	switch t {
	case BlockHeading1:
		return 1
	case BlockHeading2:
		return 2
	case BlockHeading3:
		return 3
	}
	return 1
}

// Blocks выполняет обратное отображение нод документа в блоки: по блоку
// на заголовок, параграф, медиа-ноду и на каждый элемент списка.
func Blocks(ns []nodes.Node) []ParsedBlock {
	out := make([]ParsedBlock, 0, len(ns))
	for _, n := range ns {
		switch v := n.(type) {
		case *nodes.Heading:
			t := BlockHeading1
			switch v.Level {
			case 2:
				t = BlockHeading2
			case 3:
				t = BlockHeading3
			}
			out = append(out, ParsedBlock{Type: t, Content: nodes.TextContent(v)})
		case *nodes.List:
			t := BlockList
			if v.Ordered {
				t = BlockOrderedList
			}
			for _, item := range v.Children {
				out = append(out, ParsedBlock{Type: t, Content: nodes.TextContent(item)})
			}
		case *nodes.Image:
			t := BlockImage
			if v.Kind() == nodes.KindGif {
				t = BlockGif
			}
			out = append(out, ParsedBlock{
				Type:     t,
				Metadata: &BlockMeta{Src: v.Src, Alt: v.Alt, Width: v.Width, Height: v.Height},
			})
		case *nodes.Divider:
			out = append(out, ParsedBlock{Type: BlockDivider})
		case *nodes.Button:
			out = append(out, ParsedBlock{Type: BlockButton, Content: v.Text})
		default:
			out = append(out, ParsedBlock{Type: BlockText, Content: nodes.TextContent(n)})
		}
	}
	return out
}
