package convert

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tdewolff/minify/v2"
	mhtml "github.com/tdewolff/minify/v2/html"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/document"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
)

const containerStyle = "font-family:Arial,Helvetica,sans-serif;font-size:14px;line-height:1.5;color:#1f2328"

// ExportHTML генерирует семантический HTML тела письма из дерева
// документа и оборачивает его в один стилизованный контейнер.
// Для фактически пустого документа возвращается явный пустой сигнал "".
func ExportHTML(t *document.Tree) string {
	if t.IsEmpty() {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div style="` + containerStyle + `">`)
	for _, block := range t.Root().Children {
		b.WriteString(nodes.Markup(block))
	}
	b.WriteString(`</div>`)
	return b.String()
}

// Exporter - отложенный экспорт документа. Экспорт дебаунсится по заднему
// фронту с фиксированной задержкой, чтобы серия нажатий превращалась в
// одну конвертацию за период простоя.
type Exporter struct {
	mu     sync.Mutex
	delay  time.Duration
	timer  *time.Timer
	closed bool

	render func() string
	emit   func(html string)

	minifier *minify.M
}

// NewExporter создает экспортер. render вызывается в момент срабатывания
// и должен сам обеспечить согласованное чтение дерева; emit получает
// минифицированный HTML либо "" для пустого документа.
func NewExporter(delay time.Duration, render func() string, emit func(html string)) *Exporter {
	// почтовые клиенты не восстанавливают опциональные закрывающие теги,
	// поэтому минификатор их сохраняет
	m := minify.New()
	m.Add("text/html", &mhtml.Minifier{KeepEndTags: true})
	return &Exporter{
		delay:    delay,
		render:   render,
		emit:     emit,
		minifier: m,
	}
}

// Trigger откладывает экспорт еще на одну задержку. Каждое изменение
// документа сдвигает срабатывание: выполняется только последний вызов.
func (e *Exporter) Trigger() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.delay, e.fire)
}

func (e *Exporter) fire() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	html := e.render()
	if html != "" {
		minified, err := e.minifier.String("text/html", html)
		if err != nil {
			slog.Warn("Body minify failed, emit as is", "err", err)
		} else {
			html = minified
		}
	}
	e.emit(html)
}

// Flush немедленно выполняет отложенный экспорт, если он был запланирован.
func (e *Exporter) Flush() {
	e.mu.Lock()
	pending := e.timer != nil && e.timer.Stop()
	e.mu.Unlock()
	if pending {
		e.fire()
	}
}

// Close останавливает таймер; дальнейшие Trigger игнорируются.
func (e *Exporter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
	}
}
