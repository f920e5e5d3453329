package document

import (
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
)

// State - состояние машины выделения.
type State int

const (
	NoSelection State = iota
	RangeCollapsed
	RangeExpanded
	NodeSelected
)

// Selection - текущий фокус пользователя: либо текстовый диапазон
// (якорь и фокус), либо набор выделенных атомарных нод. Выделение -
// производное состояние: оно пересчитывается из событий хоста и не
// сериализуется вместе с документом.
type Selection struct {
	state State

	anchorKey    nodes.Key
	anchorOffset int
	focusKey     nodes.Key
	focusOffset  int

	nodeKeys []nodes.Key
}

func (s *Selection) State() State { return s.state }

// SetRange устанавливает текстовый диапазон. Диапазон схлопнут, когда
// якорь совпадает с фокусом.
func (s *Selection) SetRange(anchorKey nodes.Key, anchorOffset int, focusKey nodes.Key, focusOffset int) {
	s.nodeKeys = nil
	s.anchorKey = anchorKey
	s.anchorOffset = anchorOffset
	s.focusKey = focusKey
	s.focusOffset = focusOffset
	if anchorKey == focusKey && anchorOffset == focusOffset {
		s.state = RangeCollapsed
	} else {
		s.state = RangeExpanded
	}
}

// SetCaret устанавливает схлопнутый диапазон (каретку).
func (s *Selection) SetCaret(key nodes.Key, offset int) {
	s.SetRange(key, offset, key, offset)
}

// Caret возвращает позицию каретки для схлопнутого диапазона.
func (s *Selection) Caret() (nodes.Key, int, bool) {
	if s.state != RangeCollapsed {
		return "", 0, false
	}
	return s.anchorKey, s.anchorOffset, true
}

// Anchor возвращает якорь текстового диапазона.
func (s *Selection) Anchor() (nodes.Key, int, bool) {
	if s.state != RangeCollapsed && s.state != RangeExpanded {
		return "", 0, false
	}
	return s.anchorKey, s.anchorOffset, true
}

// Focus возвращает фокус текстового диапазона.
func (s *Selection) Focus() (nodes.Key, int, bool) {
	if s.state != RangeCollapsed && s.state != RangeExpanded {
		return "", 0, false
	}
	return s.focusKey, s.focusOffset, true
}

// SelectNode переводит выделение в режим выделенных нод с единственной нодой.
func (s *Selection) SelectNode(key nodes.Key) {
	s.state = NodeSelected
	s.nodeKeys = []nodes.Key{key}
}

// ToggleNode добавляет или убирает ноду из набора выделенных.
// Пустой набор означает отсутствие выделения.
func (s *Selection) ToggleNode(key nodes.Key) {
	if s.state != NodeSelected {
		s.SelectNode(key)
		return
	}
	for i, k := range s.nodeKeys {
		if k == key {
			s.nodeKeys = append(s.nodeKeys[:i:i], s.nodeKeys[i+1:]...)
			if len(s.nodeKeys) == 0 {
				s.Clear()
			}
			return
		}
	}
	s.nodeKeys = append(s.nodeKeys, key)
}

// SelectedNodes возвращает ключи выделенных нод в порядке выделения.
func (s *Selection) SelectedNodes() []nodes.Key {
	if s.state != NodeSelected {
		return nil
	}
	out := make([]nodes.Key, len(s.nodeKeys))
	copy(out, s.nodeKeys)
	return out
}

// Contains сообщает, входит ли ключ в выделение (диапазон или набор нод).
func (s *Selection) Contains(key nodes.Key) bool {
	switch s.state {
	case RangeCollapsed, RangeExpanded:
		return s.anchorKey == key || s.focusKey == key
	case NodeSelected:
		for _, k := range s.nodeKeys {
			if k == key {
				return true
			}
		}
	}
	return false
}

// Clear снимает любое выделение.
func (s *Selection) Clear() {
	*s = Selection{}
}

// drop вызывается при удалении ноды из дерева: выделение, ссылающееся на
// удаленный ключ, очищается.
func (s *Selection) drop(key nodes.Key) {
	switch s.state {
	case RangeCollapsed, RangeExpanded:
		if s.anchorKey == key || s.focusKey == key {
			s.Clear()
		}
	case NodeSelected:
		for i, k := range s.nodeKeys {
			if k == key {
				s.nodeKeys = append(s.nodeKeys[:i:i], s.nodeKeys[i+1:]...)
				break
			}
		}
		if len(s.nodeKeys) == 0 {
			s.Clear()
		}
	}
}
