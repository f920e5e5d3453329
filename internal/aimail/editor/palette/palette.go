package palette

import (
	"strings"
)

// Mode - активный каталог палитры.
type Mode int

const (
	ModeSlash Mode = iota
	ModeSnippets
)

// maxResults - потолок выдачи фильтра.
const maxResults = 5

// Result - результат активации элемента: либо структурная слэш-команда,
// либо литеральный текст сниппета.
type Result struct {
	Command string
	Value   string
	Snippet string
}

// Palette - состояние пикера. На открытии ввод очищается и активным
// становится первый элемент; каждое нажатие перефильтровывает каталог и
// сбрасывает активный индекс.
type Palette struct {
	open   bool
	mode   Mode
	input  string
	active int

	emit func(Result)
}

// New создает палитру. emit вызывается при активации элемента, уже после
// закрытия палитры.
func New(emit func(Result)) *Palette {
	return &Palette{emit: emit}
}

func (p *Palette) IsOpen() bool { return p.open }
func (p *Palette) Mode() Mode   { return p.mode }
func (p *Palette) Input() string { return p.input }

// Open открывает палитру в заданном режиме: ввод пуст, активен первый элемент.
func (p *Palette) Open(mode Mode) {
	p.open = true
	p.mode = mode
	p.input = ""
	p.active = 0
}

// Close закрывает палитру без действия.
func (p *Palette) Close() {
	p.open = false
	p.input = ""
	p.active = 0
}

func (p *Palette) catalog() []Entry {
	if p.mode == ModeSnippets {
		return snippetCatalog
	}
	return slashCatalog
}

// SetInput задает строку фильтра и сбрасывает активный индекс.
func (p *Palette) SetInput(input string) {
	p.input = input
	p.active = 0
}

// Filtered возвращает отфильтрованный срез каталога, не более maxResults.
// Пустой фильтр дает первые элементы каталога в каталожном порядке.
// Пустой результат - состояние "не найдено", его отрисовывает хост.
func (p *Palette) Filtered() []Entry {
	needle := strings.ToLower(strings.TrimSpace(p.input))

	out := make([]Entry, 0, maxResults)
	for _, e := range p.catalog() {
		if needle == "" || matches(e, needle) {
			out = append(out, e)
			if len(out) == maxResults {
				break
			}
		}
	}
	return out
}

func matches(e Entry, needle string) bool {
	if strings.Contains(strings.ToLower(e.Label), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(e.Description), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(e.Snippet), needle) {
		return true
	}
	for _, kw := range e.Keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	return false
}

// Active возвращает индекс активного элемента в выдаче фильтра.
func (p *Palette) Active() int { return p.active }

// MoveDown сдвигает активный индекс вниз с зажимом в границах выдачи.
func (p *Palette) MoveDown() {
	if count := len(p.Filtered()); p.active < count-1 {
		p.active++
	}
}

// MoveUp сдвигает активный индекс вверх.
func (p *Palette) MoveUp() {
	if p.active > 0 {
		p.active--
	}
}

// Enter активирует текущий элемент и закрывает палитру. При пустой
// выдаче палитра просто остается открытой в состоянии "не найдено".
func (p *Palette) Enter() bool {
	filtered := p.Filtered()
	if len(filtered) == 0 || p.active >= len(filtered) {
		return false
	}
	p.activate(filtered[p.active])
	return true
}

// Digit активирует элемент по прямой цифре 1-9. Цифры осмыслены только
// при пустой строке фильтра: иначе они часть поискового запроса.
func (p *Palette) Digit(n int) bool {
	if p.input != "" {
		return false
	}
	filtered := p.Filtered()
	if n < 1 || n > len(filtered) {
		return false
	}
	p.activate(filtered[n-1])
	return true
}

func (p *Palette) activate(e Entry) {
	p.Close()
	if p.emit == nil {
		return
	}
	p.emit(Result{Command: e.Command, Value: e.Value, Snippet: e.Snippet})
}

// Escape закрывает палитру без действия.
func (p *Palette) Escape() {
	p.Close()
}
