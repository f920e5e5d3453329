// Пакет dispatch реализует шину команд редактора: упорядоченную цепочку
// обработчиков с приоритетами. Команда - это именованное структурное
// намерение (нажатие клавиши, вставка, форматирование), а не прямой вызов
// между плагинами: плагины изолированы и общаются только через команды
// и дерево документа.
//
// Основные возможности:
//   - Регистрация обработчиков на команды с приоритетом HIGH/LOW.
//   - Детерминированный порядок вызова: приоритет, затем порядок регистрации.
//   - Первый обработчик, вернувший true, останавливает цепочку.
//   - Регистрация возвращает функцию освобождения, привязанную к жизни плагина.
package dispatch

import (
	"slices"
)

// Command - имя команды редактора.
type Command string

const (
	CmdEnter      Command = "KEY_ENTER"
	CmdBackspace  Command = "KEY_BACKSPACE"
	CmdDelete     Command = "KEY_DELETE"
	CmdPaste      Command = "PASTE"
	CmdModifier   Command = "KEY_MODIFIER"
	CmdCanUndo    Command = "CAN_UNDO"
	CmdUndo       Command = "UNDO"
	CmdFormatText Command = "FORMAT_TEXT"
)

// Priority - приоритет обработчика. Обработчики HIGH выполняются раньше LOW.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityHigh
)

// File - файл, переданный вставкой или drag-and-drop.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Payload - данные команды. Заполняются только поля, осмысленные для
// конкретной команды.
type Payload struct {
	// KEY_ENTER
	Shift bool

	// KEY_MODIFIER: аккорд вида "mod+b"
	Chord string

	// FORMAT_TEXT
	Format uint8

	// PASTE
	HTML  string
	Text  string
	Files []File

	// CAN_UNDO: обработчик пишет ответ по указателю
	Result *bool
}

// Handler возвращает true, если команда потреблена: обработчики с меньшим
// приоритетом и поведение хоста по умолчанию подавляются.
type Handler func(p Payload) bool

type entry struct {
	seq      int
	priority Priority
	handler  Handler
}

// Dispatcher - владелец цепочек обработчиков. Диспетчеризация полностью
// синхронна: внутри цепочки нет точек приостановки, поэтому порядок
// детерминирован.
type Dispatcher struct {
	entries map[Command][]entry
	seq     int
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{entries: make(map[Command][]entry)}
}

// Register добавляет обработчик команды и возвращает функцию его
// освобождения. Освобождение идемпотентно.
func (d *Dispatcher) Register(cmd Command, priority Priority, h Handler) func() {
	d.seq++
	e := entry{seq: d.seq, priority: priority, handler: h}

	chain := append(d.entries[cmd], e)
	slices.SortStableFunc(chain, func(a, b entry) int {
		if a.priority != b.priority {
			return int(b.priority) - int(a.priority)
		}
		return a.seq - b.seq
	})
	d.entries[cmd] = chain

	released := false
	return func() {
		if released {
			return
		}
		released = true
		chain := d.entries[cmd]
		for i := range chain {
			if chain[i].seq == e.seq {
				d.entries[cmd] = append(chain[:i:i], chain[i+1:]...)
				return
			}
		}
	}
}

// Dispatch прогоняет команду по цепочке в порядке убывания приоритета.
// Возвращает true, если какой-то обработчик потребил команду.
func (d *Dispatcher) Dispatch(cmd Command, p Payload) bool {
	chain := slices.Clone(d.entries[cmd])
	for _, e := range chain {
		if e.handler(p) {
			return true
		}
	}
	return false
}
