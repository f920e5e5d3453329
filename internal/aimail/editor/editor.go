// Пакет editor - фасад движка редактирования тела письма. Связывает
// дерево документа, шину команд, плагины, загрузки и экспорт в единый
// контекст: ни один плагин не держит глобального состояния, все ходят
// через явный хэндл редактора.
//
// Основные возможности:
//   - Публичная поверхность для хоста: вставка блоков, очистка, фокус,
//     undo, уведомления об изменении тела письма.
//   - Сериализация доступа: все мутации дерева идут под мьютексом
//     редактора, фоновые завершения возвращаются через scheduleTx.
//   - Готовность публикуется один раз через канал Ready, без опросов.
package editor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/convert"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/dispatch"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/document"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/palette"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/uploads"
)

const defaultExportDelay = 300 * time.Millisecond

// Options - зависимости и колбэки хоста.
type Options struct {
	Store uploads.AssetStore

	// OnBodyChange получает минифицированный HTML тела письма (дебаунс)
	// либо "" для фактически пустого документа.
	OnBodyChange func(html string)
	// OnUploadError поднимает пользователю ошибку неудавшейся загрузки.
	OnUploadError func(filename string, err error)
	// OnFilesDropped получает перетащенные не-изображения нетронутыми.
	OnFilesDropped func(files []dispatch.File)
	// OnPickAsset вызывается командами палитры image/gif: хост открывает
	// диалог выбора файла и возвращает результат через Upload.
	OnPickAsset func(gif bool)

	ExportDelay time.Duration
}

// Editor - движок редактирования одного документа.
type Editor struct {
	mu sync.Mutex

	tree       *document.Tree
	dispatcher *dispatch.Dispatcher
	uploads    *uploads.Manager
	exporter   *convert.Exporter
	palette    *palette.Palette
	hist       *history

	onPickAsset func(gif bool)

	releases []func()
	ready    chan struct{}
}

func New(opts Options) *Editor {
	if opts.OnBodyChange == nil {
		opts.OnBodyChange = func(string) {}
	}
	delay := opts.ExportDelay
	if delay <= 0 {
		delay = defaultExportDelay
	}

	e := &Editor{
		tree:        document.NewTree(),
		dispatcher:  dispatch.NewDispatcher(),
		hist:        newHistory(maxHistoryDepth),
		onPickAsset: opts.OnPickAsset,
		ready:       make(chan struct{}),
	}
	e.exporter = convert.NewExporter(delay, e.renderBody, opts.OnBodyChange)
	e.uploads = uploads.NewManager(opts.Store, e.scheduleTx, opts.OnUploadError, opts.OnFilesDropped)
	e.palette = palette.New(e.applyPalette)

	e.hist.reset(e.snapshot())
	e.tree.OnChange(func(dirty []nodes.Key) {
		e.hist.record(e.snapshot())
		e.exporter.Trigger()
	})

	e.releases = append(e.releases, registerAtomic(e)...)
	e.releases = append(e.releases, registerRichText(e)...)
	e.releases = append(e.releases, registerPaste(e)...)
	e.releases = append(e.releases, registerHistory(e)...)

	close(e.ready)
	return e
}

// Ready закрывается один раз, когда редактор собран и плагины
// зарегистрированы. Зависимые компоненты ждут канал вместо опросов.
func (e *Editor) Ready() <-chan struct{} { return e.ready }

// Dispatch прогоняет команду хоста через цепочку плагинов.
func (e *Editor) Dispatch(cmd dispatch.Command, p dispatch.Payload) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatcher.Dispatch(cmd, p)
}

// scheduleTx выполняет транзакцию в контексте редактора. Этим путем
// завершения фоновых операций возвращаются в движок.
func (e *Editor) scheduleTx(fn func(tx *document.Tx) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.tree.Update(fn); err != nil {
		slog.Error("Scheduled transaction failed", "err", err)
	}
}

func (e *Editor) renderBody() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return convert.ExportHTML(e.tree)
}

// Body возвращает текущий HTML тела письма без ожидания дебаунса.
func (e *Editor) Body() string { return e.renderBody() }

// Flush немедленно выполняет отложенный экспорт.
func (e *Editor) Flush() { e.exporter.Flush() }

// InsertBlocks материализует блоки в ноды и вставляет их после заданного
// ключа либо в конец документа.
func (e *Editor) InsertBlocks(blocks []convert.ParsedBlock, after *nodes.Key) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree.Update(func(tx *document.Tx) error {
		return tx.InsertBlocks(after, convert.Materialize(blocks))
	})
}

// InsertLLMContent вставляет сгенерированный HTML, пропуская его через
// конвейер импорта. Форме блоков доверяем так же, как любой вставке.
func (e *Editor) InsertLLMContent(html string, after *nodes.Key) error {
	return e.InsertBlocks(convert.ImportHTML(html), after)
}

// ClearContent приводит документ к единственному пустому параграфу.
// Повторный вызов ничего не меняет.
func (e *Editor) ClearContent() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tree.IsEmpty() {
		return nil
	}
	return e.tree.Update(func(tx *document.Tx) error {
		for _, block := range e.tree.Blocks() {
			if err := tx.Remove(block.Key()); err != nil {
				return err
			}
		}
		return nil
	})
}

// Document сериализует документ в версионированный JSON нод.
func (e *Editor) Document() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return nodes.EncodeNodes(e.tree.Root().Children)
}

// LoadDocument заменяет содержимое документа ранее сериализованным JSON
// нод. История откатов начинается заново с загруженного состояния.
func (e *Editor) LoadDocument(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.restore(data); err != nil {
		return err
	}
	e.hist.reset(e.snapshot())
	return nil
}

// GetBlocks возвращает документ в виде списка блоков.
func (e *Editor) GetBlocks() []convert.ParsedBlock {
	e.mu.Lock()
	defer e.mu.Unlock()
	return convert.Blocks(e.tree.Blocks())
}

// FocusBlock ставит каретку в текстовый блок по ключу. Позиция
// ограничивается длиной текста; неизвестный ключ - no-op с записью в лог.
func (e *Editor) FocusBlock(key nodes.Key, position int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	block, ok := e.tree.Node(key)
	if !ok {
		slog.Warn("FocusBlock: unknown node key", "key", key)
		return
	}
	run := nodes.LastText(block)
	if run == nil {
		if !nodes.Mergeable(block) {
			slog.Warn("FocusBlock: node is not a text block", "key", key, "kind", block.Kind())
			return
		}
		e.tree.Selection().SetCaret(block.Key(), 0)
		return
	}
	length := len([]rune(run.Content))
	if position < 0 || position > length {
		position = length
	}
	e.tree.Selection().SetCaret(run.Key(), position)
}

// GetLastTextBlockID возвращает ключ последнего текстового блока документа.
func (e *Editor) GetLastTextBlockID() (nodes.Key, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	blocks := e.tree.Blocks()
	for i := len(blocks) - 1; i >= 0; i-- {
		if nodes.Mergeable(blocks[i]) {
			return blocks[i].Key(), true
		}
	}
	return "", false
}

// Upload запускает загрузку файла, выбранного хостом.
func (e *Editor) Upload(f dispatch.File) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree.Update(func(tx *document.Tx) error {
		_, err := e.uploads.Start(tx, f)
		return err
	})
}

// SweepUploads переводит в ошибку зависшие загрузки. Вызывается по
// расписанию.
func (e *Editor) SweepUploads(maxAge time.Duration) { e.uploads.Sweep(maxAge) }

// SetSelection принимает событие изменения текстового выделения от хоста.
func (e *Editor) SetSelection(anchorKey nodes.Key, anchorOffset int, focusKey nodes.Key, focusOffset int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tree.Node(anchorKey); !ok {
		slog.Warn("SetSelection: unknown anchor key", "key", anchorKey)
		return
	}
	if _, ok := e.tree.Node(focusKey); !ok {
		slog.Warn("SetSelection: unknown focus key", "key", focusKey)
		return
	}
	e.tree.Selection().SetRange(anchorKey, anchorOffset, focusKey, focusOffset)
}

// Click обрабатывает клик по ноде: атомарные ноды переключаются в
// выделение нод и обратно, клик по остальному содержимому снимает его.
// Нода с незавершенной загрузкой игнорирует выделение.
func (e *Editor) Click(key nodes.Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.tree.Node(key)
	if !ok {
		slog.Warn("Click: unknown node key", "key", key)
		return
	}
	sel := e.tree.Selection()
	if !nodes.Atomic(n) {
		if sel.State() == document.NodeSelected {
			sel.Clear()
		}
		return
	}
	if nodes.IsUploading(n) {
		return
	}
	sel.ToggleNode(key)
}

// Escape закрывает палитру, если она открыта, иначе снимает выделение нод.
func (e *Editor) Escape() {
	if e.palette.IsOpen() {
		e.palette.Escape()
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tree.Selection().State() == document.NodeSelected {
		e.tree.Selection().Clear()
	}
}

// Palette возвращает палитру команд. Хост управляет ею из потока
// событий ввода; активация элемента возвращается в редактор сама.
func (e *Editor) Palette() *palette.Palette { return e.palette }

// Undo откатывает последнюю транзакцию.
func (e *Editor) Undo() { e.Dispatch(dispatch.CmdUndo, dispatch.Payload{}) }

// CanUndo сообщает, есть ли что откатывать.
func (e *Editor) CanUndo() bool {
	var can bool
	e.Dispatch(dispatch.CmdCanUndo, dispatch.Payload{Result: &can})
	return can
}

// Close освобождает плагины и останавливает экспорт. Отложенный экспорт
// перед остановкой выполняется.
func (e *Editor) Close() {
	e.exporter.Flush()
	e.exporter.Close()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, release := range e.releases {
		release()
	}
	e.releases = nil
}

// applyPalette применяет активированный элемент палитры к документу.
func (e *Editor) applyPalette(res palette.Result) {
	// выбор файла уходит хосту без блокировки: хост вернется через Upload
	if res.Command == "image" || res.Command == "gif" {
		if e.onPickAsset != nil {
			e.onPickAsset(res.Command == "gif")
		}
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.tree.Update(func(tx *document.Tx) error {
		if res.Snippet != "" {
			return e.insertSnippet(tx, res.Snippet)
		}
		return e.insertSlashBlock(tx, res)
	})
	if err != nil {
		slog.Error("Apply palette result", "command", res.Command, "err", err)
	}
}

func (e *Editor) insertSnippet(tx *document.Tx, snippet string) error {
	ns := convert.Materialize(convert.ImportText(snippet))
	var after *nodes.Key
	if key, _, ok := tx.Selection().Caret(); ok {
		after = &key
	}
	if err := tx.InsertBlocks(after, ns); err != nil {
		return err
	}
	if len(ns) > 0 {
		if run := nodes.LastText(ns[len(ns)-1]); run != nil {
			tx.Selection().SetCaret(run.Key(), len([]rune(run.Content)))
		}
	}
	return nil
}

func (e *Editor) insertSlashBlock(tx *document.Tx, res palette.Result) error {
	var block nodes.Node
	var caret nodes.Node
	switch res.Command {
	case "heading":
		level := 1
		switch res.Value {
		case "2":
			level = 2
		case "3":
			level = 3
		}
		run := nodes.NewText("", 0)
		block = nodes.NewHeading(level, run)
		caret = run
	case "list":
		run := nodes.NewText("", 0)
		item := nodes.NewListItem(run)
		block = nodes.NewList(res.Value == "ordered", item)
		caret = run
	case "divider":
		block = nodes.NewDivider()
	case "button":
		block = nodes.NewButton("Кнопка")
	default:
		slog.Warn("Unknown palette command", "command", res.Command)
		return nil
	}

	var after *nodes.Key
	if key, _, ok := tx.Selection().Caret(); ok {
		after = &key
	}
	blocks := []nodes.Node{block}
	// атомарный блок всегда получает пустой параграф следом, чтобы было
	// куда печатать дальше
	if nodes.Atomic(block) {
		trailing := nodes.NewParagraph()
		blocks = append(blocks, trailing)
		caret = trailing
	}
	if err := tx.InsertBlocks(after, blocks); err != nil {
		return err
	}
	if caret != nil {
		tx.Selection().SetCaret(caret.Key(), 0)
	}
	return nil
}

func (e *Editor) snapshot() []byte {
	data, err := nodes.EncodeNodes(e.tree.Root().Children)
	if err != nil {
		slog.Error("Snapshot document", "err", err)
		return nil
	}
	return data
}

func (e *Editor) restore(data []byte) error {
	ns, err := nodes.DecodeNodes(data)
	if err != nil {
		return err
	}
	return e.tree.Update(func(tx *document.Tx) error {
		for _, block := range e.tree.Blocks() {
			if err := tx.Remove(block.Key()); err != nil {
				return err
			}
		}
		if len(ns) == 0 {
			return nil
		}
		return tx.InsertBlocks(nil, ns)
	})
}
