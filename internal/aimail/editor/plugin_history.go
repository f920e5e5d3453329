package editor

import (
	"log/slog"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/dispatch"
)

// historyPlugin обслуживает откат: команды UNDO и CAN_UNDO.
type historyPlugin struct {
	e *Editor
}

func registerHistory(e *Editor) []func() {
	p := &historyPlugin{e: e}
	return []func(){
		e.dispatcher.Register(dispatch.CmdUndo, dispatch.PriorityLow, p.undo),
		e.dispatcher.Register(dispatch.CmdCanUndo, dispatch.PriorityLow, p.canUndo),
	}
}

func (p *historyPlugin) undo(dispatch.Payload) bool {
	snapshot, ok := p.e.hist.pop()
	if !ok {
		return false
	}
	p.e.hist.beginRestore()
	defer p.e.hist.endRestore()
	if err := p.e.restore(snapshot); err != nil {
		slog.Error("Undo restore failed", "err", err)
	}
	return true
}

func (p *historyPlugin) canUndo(pl dispatch.Payload) bool {
	if pl.Result == nil {
		return false
	}
	*pl.Result = p.e.hist.canUndo()
	return true
}
