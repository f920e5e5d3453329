// Пакет nodes описывает модель нод документа письма: закрытый набор вариантов
// (параграф, заголовок, текстовый фрагмент, список, разделитель, изображение,
// gif, кнопка), их стабильные ключи и таблицу операций по типам.
//
// Основные возможности:
//   - Стабильные уникальные ключи нод, не зависящие от позиции в дереве.
//   - Сериализация и десериализация нод в JSON вида {type, version, ...}.
//   - Экспорт ноды в простую HTML-разметку.
//   - Предикат NeedsRender для пропуска перерисовки по равенству атрибутов.
package nodes

import (
	"github.com/gofrs/uuid"
)

// Kind - тег типа ноды. Набор закрыт: новый тип означает новый вариант
// и новую запись в registry, а не новую ветку наследования.
type Kind string

const (
	KindRoot      Kind = "root"
	KindParagraph Kind = "paragraph"
	KindHeading   Kind = "heading"
	KindText      Kind = "text"
	KindList      Kind = "list"
	KindListItem  Kind = "listItem"
	KindDivider   Kind = "divider"
	KindImage     Kind = "image"
	KindGif       Kind = "gif"
	KindButton    Kind = "button"
)

// Key - уникальный в рамках процесса ключ ноды. Ключи никогда не
// переиспользуются после удаления ноды, поэтому асинхронные операции
// (например, загрузки) могут безопасно адресовать ноды по ключу.
type Key string

// NewKey генерирует новый ключ ноды.
func NewKey() Key {
	return Key(uuid.Must(uuid.NewV4()).String())
}

// Node - единица дерева документа.
type Node interface {
	Key() Key
	Kind() Kind
}

type base struct {
	key Key
}

func (b base) Key() Key { return b.key }

// Root - корень документа. Ровно один на документ, не удаляется.
type Root struct {
	base
	Children []Node
}

func (Root) Kind() Kind { return KindRoot }

func NewRoot() *Root {
	return &Root{base: base{key: NewKey()}}
}

// Paragraph - текстовый блок. Дочерние ноды - текстовые фрагменты.
type Paragraph struct {
	base
	Children []Node
}

func (Paragraph) Kind() Kind { return KindParagraph }

func NewParagraph(children ...Node) *Paragraph {
	return &Paragraph{base: base{key: NewKey()}, Children: children}
}

// Heading - заголовок уровня 1-3.
type Heading struct {
	base
	Level    int
	Children []Node
}

func (Heading) Kind() Kind { return KindHeading }

func NewHeading(level int, children ...Node) *Heading {
	if level < 1 {
		level = 1
	}
	if level > 3 {
		level = 3
	}
	return &Heading{base: base{key: NewKey()}, Level: level, Children: children}
}

// Text - листовой текстовый фрагмент с битсетом форматирования.
type Text struct {
	base
	Content string
	Format  Format
}

func (Text) Kind() Kind { return KindText }

func NewText(content string, format Format) *Text {
	return &Text{base: base{key: NewKey()}, Content: content, Format: format}
}

// List - маркированный или нумерованный список. Дочерние ноды - ListItem.
type List struct {
	base
	Ordered  bool
	Children []Node
}

func (List) Kind() Kind { return KindList }

func NewList(ordered bool, children ...Node) *List {
	return &List{base: base{key: NewKey()}, Ordered: ordered, Children: children}
}

// ListItem - элемент списка. Содержимое - текстовые фрагменты или вложенные списки.
type ListItem struct {
	base
	Children []Node
}

func (ListItem) Kind() Kind { return KindListItem }

func NewListItem(children ...Node) *ListItem {
	return &ListItem{base: base{key: NewKey()}, Children: children}
}

// Divider - горизонтальный разделитель. Атомарная нода без атрибутов.
type Divider struct {
	base
}

func (Divider) Kind() Kind { return KindDivider }

func NewDivider() *Divider {
	return &Divider{base: base{key: NewKey()}}
}

// Image - изображение или gif. Оба варианта ведут себя одинаково,
// различается только тег типа при сериализации, поэтому вариант хранится
// в поле kind, а не в отдельной структуре.
// Пока Uploading == true, Src может быть пустым, а нода недоступна для
// удаления, изменения размера и выделения.
type Image struct {
	base
	kind      Kind
	Src       string
	Alt       string
	Width     int
	Height    int
	Uploading bool
	UploadID  string
}

func (i *Image) Kind() Kind { return i.kind }

func NewImage(src, alt string, width, height int) *Image {
	return &Image{base: base{key: NewKey()}, kind: KindImage, Src: src, Alt: alt, Width: width, Height: height}
}

func NewGif(src, alt string, width, height int) *Image {
	img := NewImage(src, alt, width, height)
	img.kind = KindGif
	return img
}

// NewUploadPlaceholder создает изображение-заглушку для незавершенной загрузки.
func NewUploadPlaceholder(kind Kind, alt, uploadID string) *Image {
	if kind != KindGif {
		kind = KindImage
	}
	return &Image{
		base:      base{key: NewKey()},
		kind:      kind,
		Alt:       alt,
		Uploading: true,
		UploadID:  uploadID,
	}
}

// Button - атомарная кнопка с текстом.
type Button struct {
	base
	Text string
}

func (Button) Kind() Kind { return KindButton }

func NewButton(text string) *Button {
	return &Button{base: base{key: NewKey()}, Text: text}
}

// Atomic сообщает, является ли нода атомарной: такая нода выделяется и
// удаляется только целиком, внутрь нее нельзя поставить каретку.
func Atomic(n Node) bool {
	switch n.Kind() {
	case KindDivider, KindImage, KindGif, KindButton:
		return true
	}
	return false
}

// Mergeable сообщает, можно ли сливать блок с соседним текстовым блоком
// по Backspace в нулевой позиции.
func Mergeable(n Node) bool {
	switch n.Kind() {
	case KindParagraph, KindHeading, KindListItem:
		return true
	}
	return false
}

// Children возвращает упорядоченных потомков контейнерной ноды.
// Для листовых и атомарных нод возвращает nil.
func Children(n Node) []Node {
	switch v := n.(type) {
	case *Root:
		return v.Children
	case *Paragraph:
		return v.Children
	case *Heading:
		return v.Children
	case *List:
		return v.Children
	case *ListItem:
		return v.Children
	}
	return nil
}

// SetChildren заменяет потомков контейнерной ноды. Для прочих нод - no-op.
func SetChildren(n Node, children []Node) {
	switch v := n.(type) {
	case *Root:
		v.Children = children
	case *Paragraph:
		v.Children = children
	case *Heading:
		v.Children = children
	case *List:
		v.Children = children
	case *ListItem:
		v.Children = children
	}
}

// TextContent собирает текстовое содержимое ноды и всех ее потомков.
func TextContent(n Node) string {
	if t, ok := n.(*Text); ok {
		return t.Content
	}
	var out string
	for _, child := range Children(n) {
		out += TextContent(child)
	}
	return out
}

// LastText возвращает последний текстовый фрагмент блока, если он есть.
func LastText(n Node) *Text {
	children := Children(n)
	for i := len(children) - 1; i >= 0; i-- {
		if t, ok := children[i].(*Text); ok {
			return t
		}
	}
	return nil
}

// UploadID возвращает идентификатор загрузки ноды-заглушки.
func UploadID(n Node) string {
	if img, ok := n.(*Image); ok {
		return img.UploadID
	}
	return ""
}

// IsUploading сообщает, привязана ли нода к незавершенной загрузке.
func IsUploading(n Node) bool {
	if img, ok := n.(*Image); ok {
		return img.Uploading
	}
	return false
}
