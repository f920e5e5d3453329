package editor

import (
	"log/slog"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/dispatch"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/document"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
)

// richTextPlugin - базовое текстовое редактирование: разбиение и слияние
// блоков по Enter/Backspace, мягкий перенос, переключение форматирования
// и клавиатурные аккорды.
type richTextPlugin struct {
	e *Editor
}

func registerRichText(e *Editor) []func() {
	p := &richTextPlugin{e: e}
	return []func(){
		e.dispatcher.Register(dispatch.CmdEnter, dispatch.PriorityLow, p.enter),
		e.dispatcher.Register(dispatch.CmdBackspace, dispatch.PriorityLow, p.backspace),
		e.dispatcher.Register(dispatch.CmdFormatText, dispatch.PriorityLow, p.formatText),
		e.dispatcher.Register(dispatch.CmdModifier, dispatch.PriorityLow, p.modifier),
	}
}

// enter разбивает текущий блок по каретке. С шифтом вместо разбиения
// вставляется мягкий перенос строки внутри блока.
func (p *richTextPlugin) enter(pl dispatch.Payload) bool {
	key, offset, ok := p.e.tree.Selection().Caret()
	if !ok {
		return false
	}

	consumed := false
	err := p.e.tree.Update(func(tx *document.Tx) error {
		if pl.Shift {
			consumed = p.softBreak(tx, key, offset)
			return nil
		}
		var err error
		consumed, err = p.split(tx, key, offset)
		return err
	})
	if err != nil {
		slog.Error("Enter handling failed", "err", err)
		return false
	}
	return consumed
}

// split переносит хвост содержимого после каретки в новый блок того же
// вида и ставит каретку в его начало.
func (p *richTextPlugin) split(tx *document.Tx, key nodes.Key, offset int) (bool, error) {
	n, ok := tx.Node(key)
	if !ok {
		return false, nil
	}

	run, isRun := n.(*nodes.Text)
	if !isRun {
		// каретка на пустом блоке без текстовых фрагментов
		if !nodes.Mergeable(n) {
			return false, nil
		}
		fresh := nodes.NewText("", 0)
		next := sameKindBlock(n, fresh)
		if err := tx.InsertAfter(n.Key(), next); err != nil {
			return false, err
		}
		tx.Selection().SetCaret(fresh.Key(), 0)
		return true, nil
	}

	block, ok := tx.Parent(key)
	if !ok || !nodes.Mergeable(block) {
		return false, nil
	}

	runes := []rune(run.Content)
	if offset < 0 {
		offset = 0
	}
	if offset > len(runes) {
		offset = len(runes)
	}

	// фрагменты правее каретки переезжают в новый блок копиями
	type tailRun struct {
		content string
		format  nodes.Format
	}
	var tail []tailRun
	passed := false
	for _, sibling := range nodes.Children(block) {
		if sibling.Key() == key {
			passed = true
			continue
		}
		if passed {
			tail = append(tail, tailRun{content: nodes.TextContent(sibling), format: textFormat(sibling)})
		}
	}
	carried := nodes.NewText(string(runes[offset:]), run.Format)
	children := []nodes.Node{carried}
	for _, t := range tail {
		children = append(children, nodes.NewText(t.content, t.format))
	}

	// убрать оригиналы хвоста из старого блока
	passed = false
	for _, sibling := range nodes.Children(block) {
		if sibling.Key() == key {
			passed = true
			continue
		}
		if passed {
			if err := tx.Remove(sibling.Key()); err != nil {
				return false, err
			}
		}
	}

	run.Content = string(runes[:offset])
	tx.MarkDirty(run.Key())

	next := sameKindBlock(block, children...)
	if err := tx.InsertAfter(block.Key(), next); err != nil {
		return false, err
	}
	tx.Selection().SetCaret(carried.Key(), 0)
	return true, nil
}

func (p *richTextPlugin) softBreak(tx *document.Tx, key nodes.Key, offset int) bool {
	n, ok := tx.Node(key)
	if !ok {
		return false
	}
	if run, isRun := n.(*nodes.Text); isRun {
		runes := []rune(run.Content)
		if offset < 0 {
			offset = 0
		}
		if offset > len(runes) {
			offset = len(runes)
		}
		run.Content = string(runes[:offset]) + "\n" + string(runes[offset:])
		tx.MarkDirty(run.Key())
		tx.Selection().SetCaret(run.Key(), offset+1)
		return true
	}
	if !nodes.Mergeable(n) {
		return false
	}
	fresh := nodes.NewText("\n", 0)
	if err := tx.Append(n.Key(), fresh); err != nil {
		slog.Error("Soft break append failed", "err", err)
		return false
	}
	tx.Selection().SetCaret(fresh.Key(), 1)
	return true
}

// backspace в нулевой позиции блока сливает его с предыдущим текстовым
// соседом. Каретка встает в точку слияния: разбиение и слияние взаимно
// обратны. Удаление символов внутри блока остается за хостом.
func (p *richTextPlugin) backspace(dispatch.Payload) bool {
	key, offset, ok := p.e.tree.Selection().Caret()
	if !ok || offset != 0 {
		return false
	}

	consumed := false
	err := p.e.tree.Update(func(tx *document.Tx) error {
		block, ok := caretBlock(tx, key)
		if !ok {
			return nil
		}
		prev, ok := tx.PrevSibling(block.Key())
		if !ok || !nodes.Mergeable(prev) {
			return nil
		}
		runKey, mergeOffset, err := tx.Merge(prev.Key(), block.Key())
		if err != nil {
			return err
		}
		tx.Selection().SetCaret(runKey, mergeOffset)
		consumed = true
		return nil
	})
	if err != nil {
		slog.Error("Backspace merge failed", "err", err)
		return false
	}
	return consumed
}

// formatText переключает флаг форматирования на фрагментах, накрытых
// текущим выделением.
func (p *richTextPlugin) formatText(pl dispatch.Payload) bool {
	flag := nodes.Format(pl.Format)
	if flag == 0 {
		return false
	}
	sel := p.e.tree.Selection()
	anchorKey, _, ok := sel.Anchor()
	if !ok {
		return false
	}
	focusKey, _, _ := sel.Focus()

	consumed := false
	err := p.e.tree.Update(func(tx *document.Tx) error {
		for _, run := range coveredRuns(tx, anchorKey, focusKey) {
			run.Format.Toggle(flag)
			tx.MarkDirty(run.Key())
			consumed = true
		}
		return nil
	})
	if err != nil {
		slog.Error("Toggle format failed", "err", err)
		return false
	}
	return consumed
}

// modifier транслирует клавиатурные аккорды в команды.
func (p *richTextPlugin) modifier(pl dispatch.Payload) bool {
	switch pl.Chord {
	case "mod+b":
		return p.formatText(dispatch.Payload{Format: uint8(nodes.FormatBold)})
	case "mod+i":
		return p.formatText(dispatch.Payload{Format: uint8(nodes.FormatItalic)})
	case "mod+u":
		return p.formatText(dispatch.Payload{Format: uint8(nodes.FormatUnderline)})
	case "mod+z":
		return p.e.dispatcher.Dispatch(dispatch.CmdUndo, dispatch.Payload{})
	}
	return false
}

// caretBlock возвращает текстовый блок, которому принадлежит каретка:
// родителя текстового фрагмента либо саму ноду для пустого блока.
func caretBlock(tx *document.Tx, key nodes.Key) (nodes.Node, bool) {
	n, ok := tx.Node(key)
	if !ok {
		return nil, false
	}
	if _, isRun := n.(*nodes.Text); isRun {
		parent, ok := tx.Parent(key)
		if !ok || !nodes.Mergeable(parent) {
			return nil, false
		}
		return parent, true
	}
	if nodes.Mergeable(n) {
		return n, true
	}
	return nil, false
}

// coveredRuns возвращает текстовые фрагменты, накрытые диапазоном от
// якоря до фокуса. Диапазон внутри одного фрагмента дает этот фрагмент;
// диапазон внутри одного блока дает фрагменты между якорем и фокусом
// включительно.
func coveredRuns(tx *document.Tx, anchorKey, focusKey nodes.Key) []*nodes.Text {
	anchor, ok := tx.Node(anchorKey)
	if !ok {
		return nil
	}
	anchorRun, isRun := anchor.(*nodes.Text)
	if !isRun {
		return nil
	}
	if focusKey == anchorKey {
		return []*nodes.Text{anchorRun}
	}

	parent, ok := tx.Parent(anchorKey)
	if !ok {
		return []*nodes.Text{anchorRun}
	}
	focusParent, ok := tx.Parent(focusKey)
	if !ok || focusParent.Key() != parent.Key() {
		return []*nodes.Text{anchorRun}
	}

	var out []*nodes.Text
	inside := false
	for _, child := range nodes.Children(parent) {
		edge := child.Key() == anchorKey || child.Key() == focusKey
		if inside || edge {
			if run, isRun := child.(*nodes.Text); isRun {
				out = append(out, run)
			}
		}
		if edge {
			inside = !inside
		}
	}
	return out
}

func sameKindBlock(like nodes.Node, children ...nodes.Node) nodes.Node {
	switch v := like.(type) {
	case *nodes.Heading:
		return nodes.NewHeading(v.Level, children...)
	case *nodes.ListItem:
		return nodes.NewListItem(children...)
	default:
		return nodes.NewParagraph(children...)
	}
}

func textFormat(n nodes.Node) nodes.Format {
	if run, ok := n.(*nodes.Text); ok {
		return run.Format
	}
	return 0
}
