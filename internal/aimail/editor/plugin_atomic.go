package editor

import (
	"log/slog"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/dispatch"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/document"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
)

// atomicPlugin перехватывает клавиатуру вокруг атомарных нод раньше
// текстового плагина: в атомарную ноду нельзя "войти", ее нельзя слить,
// а нода с незавершенной загрузкой вообще не трогается.
type atomicPlugin struct {
	e *Editor
}

func registerAtomic(e *Editor) []func() {
	p := &atomicPlugin{e: e}
	return []func(){
		e.dispatcher.Register(dispatch.CmdEnter, dispatch.PriorityHigh, p.enter),
		e.dispatcher.Register(dispatch.CmdBackspace, dispatch.PriorityHigh, p.backspace),
		e.dispatcher.Register(dispatch.CmdDelete, dispatch.PriorityHigh, p.deleteSelected),
	}
}

// enter на атомарной ноде вставляет пустой параграф сразу за ней и
// уводит каретку туда.
func (p *atomicPlugin) enter(dispatch.Payload) bool {
	key, _, ok := p.e.tree.Selection().Caret()
	if !ok {
		return false
	}
	n, found := p.e.tree.Node(key)
	if !found || !nodes.Atomic(n) {
		return false
	}

	err := p.e.tree.Update(func(tx *document.Tx) error {
		fresh := nodes.NewParagraph()
		if err := tx.InsertAfter(key, fresh); err != nil {
			return err
		}
		tx.Selection().SetCaret(fresh.Key(), 0)
		return nil
	})
	if err != nil {
		slog.Error("Insert paragraph after atomic node", "err", err)
		return false
	}
	return true
}

// backspace в нулевой позиции блока перед атомарным соседом выделяет
// соседа вместо его удаления. Выделенные ноды удаляются следующим
// нажатием. Нода с незавершенной загрузкой игнорируется.
func (p *atomicPlugin) backspace(pl dispatch.Payload) bool {
	sel := p.e.tree.Selection()
	if sel.State() == document.NodeSelected {
		return p.deleteSelected(pl)
	}

	key, offset, ok := sel.Caret()
	if !ok || offset != 0 {
		return false
	}
	block := key
	if n, found := p.e.tree.Node(key); found {
		if _, isRun := n.(*nodes.Text); isRun {
			parent, found := p.e.tree.Parent(key)
			if !found {
				return false
			}
			block = parent.Key()
		}
	}
	prev, found := p.e.tree.PrevSibling(block)
	if !found || !nodes.Atomic(prev) {
		return false
	}
	if nodes.IsUploading(prev) {
		return false
	}
	sel.SelectNode(prev.Key())
	return true
}

// deleteSelected удаляет ноды из выделения нод.
func (p *atomicPlugin) deleteSelected(dispatch.Payload) bool {
	sel := p.e.tree.Selection()
	if sel.State() != document.NodeSelected {
		return false
	}
	keys := sel.SelectedNodes()

	consumed := false
	err := p.e.tree.Update(func(tx *document.Tx) error {
		for _, key := range keys {
			n, found := tx.Node(key)
			if !found || nodes.IsUploading(n) {
				continue
			}
			if err := tx.Remove(key); err != nil {
				return err
			}
			consumed = true
		}
		return nil
	})
	if err != nil {
		slog.Error("Delete selected nodes", "err", err)
		return false
	}
	return consumed
}
