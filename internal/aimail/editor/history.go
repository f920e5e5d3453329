package editor

import (
	"sync"
)

// maxHistoryDepth ограничивает глубину отката.
const maxHistoryDepth = 100

// history хранит снимки документа в сериализованном виде. Снимок
// делается после каждой транзакции; откат восстанавливает предыдущий.
// Во время восстановления запись снимков подавляется, иначе сам откат
// попал бы в историю.
type history struct {
	mu        sync.Mutex
	stack     [][]byte
	current   []byte
	restoring bool
}

func newHistory(depth int) *history {
	return &history{stack: make([][]byte, 0, depth)}
}

func (h *history) reset(snapshot []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = h.stack[:0]
	h.current = snapshot
}

func (h *history) record(snapshot []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.restoring || snapshot == nil {
		return
	}
	if h.current != nil {
		if len(h.stack) == maxHistoryDepth {
			copy(h.stack, h.stack[1:])
			h.stack = h.stack[:maxHistoryDepth-1]
		}
		h.stack = append(h.stack, h.current)
	}
	h.current = snapshot
}

func (h *history) canUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stack) > 0
}

// pop снимает верхний снимок и делает его текущим. Пока идет
// восстановление, вызывающий держит restoring через beginRestore.
func (h *history) pop() ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) == 0 {
		return nil, false
	}
	top := h.stack[len(h.stack)-1]
	h.stack = h.stack[:len(h.stack)-1]
	h.current = top
	return top, true
}

func (h *history) beginRestore() {
	h.mu.Lock()
	h.restoring = true
	h.mu.Unlock()
}

func (h *history) endRestore() {
	h.mu.Lock()
	h.restoring = false
	h.mu.Unlock()
}
