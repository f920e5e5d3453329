package nodes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// CurrentVersion - версия сериализованного формата нод. Движок пишет
// только версию 1; более новые версии при импорте пропускаются.
const CurrentVersion = 1

var (
	ErrUnknownKind    = errors.New("unknown node type")
	ErrUnknownVersion = errors.New("unsupported node version")
)

// definition - запись таблицы операций для одного типа ноды.
// Добавление нового типа - это новый вариант и новая запись здесь.
type definition struct {
	decode      func(raw []byte) (Node, error)
	encode      func(n Node) any
	markup      func(n Node, b *markupBuilder)
	needsRender func(prev, next Node) bool
}

var registry = map[Kind]definition{}

// Заполняется в init: кодеки контейнеров рекурсивно зовут EncodeNode и
// DecodeNode, композитный литерал дал бы цикл инициализации registry.
func init() {
	registry[KindParagraph] = definition{decodeParagraph, encodeParagraph, markupParagraph, renderContainer}
	registry[KindHeading] = definition{decodeHeading, encodeHeading, markupHeading, renderHeading}
	registry[KindText] = definition{decodeText, encodeText, markupText, renderText}
	registry[KindList] = definition{decodeList, encodeList, markupList, renderList}
	registry[KindListItem] = definition{decodeListItem, encodeListItem, markupListItem, renderContainer}
	registry[KindDivider] = definition{decodeDivider, encodeDivider, markupDivider, renderDivider}
	registry[KindImage] = definition{decodeImage, encodeImage, markupImage, renderImage}
	registry[KindGif] = definition{decodeImage, encodeImage, markupImage, renderImage}
	registry[KindButton] = definition{decodeButton, encodeButton, markupButton, renderButton}
}

type header struct {
	Type    Kind `json:"type"`
	Version int  `json:"version"`
}

func newHeader(kind Kind) header {
	return header{Type: kind, Version: CurrentVersion}
}

type containerJSON struct {
	header
	Content []json.RawMessage `json:"content,omitempty"`
}

type headingJSON struct {
	header
	Level   int               `json:"level"`
	Content []json.RawMessage `json:"content,omitempty"`
}

type textJSON struct {
	header
	Text      string `json:"text"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
	Strike    bool   `json:"strike,omitempty"`
	Code      bool   `json:"code,omitempty"`
}

type listJSON struct {
	header
	Ordered bool              `json:"ordered"`
	Content []json.RawMessage `json:"content,omitempty"`
}

type imageJSON struct {
	header
	Src       string `json:"src"`
	Alt       string `json:"alt,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Uploading bool   `json:"uploading,omitempty"`
	UploadID  string `json:"upload_id,omitempty"`
}

type buttonJSON struct {
	header
	Text string `json:"text"`
}

// EncodeNode сериализует ноду в JSON вида {type, version, ...атрибуты}.
// Ключи нод не сериализуются: они уникальны в рамках процесса и
// генерируются заново при импорте.
func EncodeNode(n Node) (json.RawMessage, error) {
	def, ok := registry[n.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, n.Kind())
	}
	return json.Marshal(def.encode(n))
}

// EncodeNodes сериализует список нод верхнего уровня в JSON-массив.
func EncodeNodes(ns []Node) ([]byte, error) {
	out := make([]json.RawMessage, 0, len(ns))
	for _, n := range ns {
		raw, err := EncodeNode(n)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// DecodeNode восстанавливает ноду из JSON. Неизвестный тип или более
// новая версия - ошибка: вызывающий код пропускает такую ноду, а не
// фабрикует что-то вместо нее.
func DecodeNode(raw json.RawMessage) (Node, error) {
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, err
	}
	def, ok := registry[h.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, h.Type)
	}
	if h.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: %s v%d", ErrUnknownVersion, h.Type, h.Version)
	}
	return def.decode(raw)
}

// DecodeNodes восстанавливает список нод из JSON-массива.
// Ноды, которые не удалось восстановить, пропускаются с предупреждением;
// импорт целиком из-за одной плохой ноды не падает.
func DecodeNodes(data []byte) ([]Node, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(raws))
	for _, raw := range raws {
		n, err := DecodeNode(raw)
		if err != nil {
			slog.Warn("Skip unreadable node on import", "err", err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func encodeChildren(children []Node) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(children))
	for _, child := range children {
		raw, err := EncodeNode(child)
		if err != nil {
			slog.Warn("Skip unserializable child node", "err", err)
			continue
		}
		out = append(out, raw)
	}
	return out
}

func decodeChildren(raws []json.RawMessage) []Node {
	out := make([]Node, 0, len(raws))
	for _, raw := range raws {
		n, err := DecodeNode(raw)
		if err != nil {
			slog.Warn("Skip unreadable child node", "err", err)
			continue
		}
		out = append(out, n)
	}
	return out
}

func encodeParagraph(n Node) any {
	p := n.(*Paragraph)
	return containerJSON{header: newHeader(KindParagraph), Content: encodeChildren(p.Children)}
}

func decodeParagraph(raw []byte) (Node, error) {
	var dto containerJSON
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, err
	}
	return NewParagraph(decodeChildren(dto.Content)...), nil
}

func encodeHeading(n Node) any {
	h := n.(*Heading)
	return headingJSON{header: newHeader(KindHeading), Level: h.Level, Content: encodeChildren(h.Children)}
}

func decodeHeading(raw []byte) (Node, error) {
	var dto headingJSON
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, err
	}
	return NewHeading(dto.Level, decodeChildren(dto.Content)...), nil
}

func encodeText(n Node) any {
	t := n.(*Text)
	return textJSON{
		header:    newHeader(KindText),
		Text:      t.Content,
		Bold:      t.Format.Has(FormatBold),
		Italic:    t.Format.Has(FormatItalic),
		Underline: t.Format.Has(FormatUnderline),
		Strike:    t.Format.Has(FormatStrike),
		Code:      t.Format.Has(FormatCode),
	}
}

func decodeText(raw []byte) (Node, error) {
	var dto textJSON
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, err
	}
	var format Format
	if dto.Bold {
		format |= FormatBold
	}
	if dto.Italic {
		format |= FormatItalic
	}
	if dto.Underline {
		format |= FormatUnderline
	}
	if dto.Strike {
		format |= FormatStrike
	}
	if dto.Code {
		format |= FormatCode
	}
	return NewText(dto.Text, format), nil
}

func encodeList(n Node) any {
	l := n.(*List)
	return listJSON{header: newHeader(KindList), Ordered: l.Ordered, Content: encodeChildren(l.Children)}
}

func decodeList(raw []byte) (Node, error) {
	var dto listJSON
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, err
	}
	return NewList(dto.Ordered, decodeChildren(dto.Content)...), nil
}

func encodeListItem(n Node) any {
	li := n.(*ListItem)
	return containerJSON{header: newHeader(KindListItem), Content: encodeChildren(li.Children)}
}

func decodeListItem(raw []byte) (Node, error) {
	var dto containerJSON
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, err
	}
	return NewListItem(decodeChildren(dto.Content)...), nil
}

func encodeDivider(n Node) any {
	return header{Type: KindDivider, Version: CurrentVersion}
}

func decodeDivider(raw []byte) (Node, error) {
	return NewDivider(), nil
}

func encodeImage(n Node) any {
	img := n.(*Image)
	return imageJSON{
		header:    newHeader(img.Kind()),
		Src:       img.Src,
		Alt:       img.Alt,
		Width:     img.Width,
		Height:    img.Height,
		Uploading: img.Uploading,
		UploadID:  img.UploadID,
	}
}

func decodeImage(raw []byte) (Node, error) {
	var dto imageJSON
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, err
	}
	img := NewImage(dto.Src, dto.Alt, dto.Width, dto.Height)
	img.kind = dto.Type
	img.Uploading = dto.Uploading
	img.UploadID = dto.UploadID
	return img, nil
}

func encodeButton(n Node) any {
	b := n.(*Button)
	return buttonJSON{header: newHeader(KindButton), Text: b.Text}
}

func decodeButton(raw []byte) (Node, error) {
	var dto buttonJSON
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, err
	}
	return NewButton(dto.Text), nil
}
