package editor

import (
	"log/slog"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/convert"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/dispatch"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/document"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
)

// pastePlugin обслуживает вставку и drag-and-drop. Файлы перехватываются
// с высоким приоритетом, чтобы картинки ушли в конвейер загрузки раньше
// любой текстовой обработки; текст и HTML обрабатываются с низким.
type pastePlugin struct {
	e *Editor
}

func registerPaste(e *Editor) []func() {
	p := &pastePlugin{e: e}
	return []func(){
		e.dispatcher.Register(dispatch.CmdPaste, dispatch.PriorityHigh, p.files),
		e.dispatcher.Register(dispatch.CmdPaste, dispatch.PriorityLow, p.content),
	}
}

func (p *pastePlugin) files(pl dispatch.Payload) bool {
	if len(pl.Files) == 0 {
		return false
	}
	handled := false
	err := p.e.tree.Update(func(tx *document.Tx) error {
		handled = p.e.uploads.HandleDrop(tx, pl.Files)
		return nil
	})
	if err != nil {
		slog.Error("Handle dropped files", "err", err)
		return false
	}
	return handled
}

// content конвертирует вставленный HTML или plain text в блоки и
// вставляет их в позицию каретки. Неразборчивый HTML деградирует до
// текстовой эвристики внутри конвейера импорта.
func (p *pastePlugin) content(pl dispatch.Payload) bool {
	var blocks []convert.ParsedBlock
	switch {
	case pl.HTML != "":
		blocks = convert.ImportHTML(pl.HTML)
	case pl.Text != "":
		blocks = convert.ImportText(pl.Text)
	}
	if len(blocks) == 0 {
		return false
	}

	err := p.e.tree.Update(func(tx *document.Tx) error {
		ns := convert.Materialize(blocks)
		var after *nodes.Key
		if key, _, ok := tx.Selection().Caret(); ok {
			after = &key
		}
		if err := tx.InsertBlocks(after, ns); err != nil {
			return err
		}
		if len(ns) > 0 {
			last := ns[len(ns)-1]
			if run := nodes.LastText(last); run != nil {
				tx.Selection().SetCaret(run.Key(), len([]rune(run.Content)))
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Paste content", "err", err)
		return false
	}
	return true
}
