// Пакет uploads управляет жизненным циклом асинхронных загрузок медиа.
// Каждая загрузка синхронно привязывается к ноде-заглушке и дальше
// адресуется по uploadId через индекс документа, а не по позиции в
// дереве: параллельные завершения не могут испортить чужую заглушку,
// даже если пользователь успел переставить контент.
//
// Машина состояний задачи: Requested -> PendingPlaceholder -> Uploading ->
// {Succeeded | Failed}. Отмены нет: единственный путь удаления заглушки -
// неудача загрузки или действия пользователя.
package uploads

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "image/gif"

	"github.com/gofrs/uuid"
	"github.com/nfnt/resize"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/dispatch"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/document"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
)

// Размеры по умолчанию, когда определить натуральные размеры не удалось.
const (
	FallbackWidth  = 400
	FallbackHeight = 300
)

// maxAssetWidth - ширина, до которой ужимаются слишком большие картинки.
const maxAssetWidth = 1600

var uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "aimail_uploads_total",
	Help: "Asset uploads by final status",
}, []string{"status"})

func init() {
	if err := prometheus.Register(uploadsTotal); err != nil {
		slog.Debug("Uploads counter already registered", "err", err)
	}
}

// Status - статус задачи загрузки.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
)

// Task - одна загрузка. Жизненный цикл завершается заменой заглушки
// финальной нодой либо ее удалением.
type Task struct {
	ID             string
	PlaceholderKey nodes.Key
	Status         Status
	StartedAt      time.Time
}

// AssetStore сохраняет бинарный ассет и возвращает его публичный URL.
// Движок не предполагает, что загрузки завершаются в порядке отправки.
type AssetStore interface {
	SaveAsset(ctx context.Context, name uuid.UUID, contentType string, data []byte) (*url.URL, error)
}

// Scheduler выполняет транзакцию в потоке движка. Через него завершения
// фоновых операций возвращаются в редактор.
type Scheduler func(fn func(tx *document.Tx) error)

// Manager - менеджер загрузок.
type Manager struct {
	store    AssetStore
	schedule Scheduler

	// onError поднимает пользователю ошибку неудавшейся загрузки
	onError func(filename string, err error)
	// onFilesDropped получает не-изображения из drag-and-drop нетронутыми
	onFilesDropped func(files []dispatch.File)

	mu    sync.Mutex
	tasks map[string]*Task
}

func NewManager(store AssetStore, schedule Scheduler, onError func(string, error), onFilesDropped func([]dispatch.File)) *Manager {
	return &Manager{
		store:          store,
		schedule:       schedule,
		onError:        onError,
		onFilesDropped: onFilesDropped,
		tasks:          make(map[string]*Task),
	}
}

// IsImage классифицирует файл по MIME-типу.
func IsImage(f dispatch.File) bool {
	return strings.HasPrefix(contentType(f), "image/")
}

func contentType(f dispatch.File) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	return http.DetectContentType(f.Data)
}

// HandleDrop классифицирует перетащенные файлы: изображения уходят в
// конвейер загрузки, остальные нетронутыми передаются внешнему
// обработчику. Возвращает true, если хоть один файл был обработан.
func (m *Manager) HandleDrop(tx *document.Tx, files []dispatch.File) bool {
	var rest []dispatch.File
	handled := false
	for _, f := range files {
		if IsImage(f) {
			if _, err := m.Start(tx, f); err != nil {
				slog.Error("Start upload", "file", f.Name, "err", err)
				continue
			}
			handled = true
		} else {
			rest = append(rest, f)
		}
	}
	if len(rest) > 0 && m.onFilesDropped != nil {
		m.onFilesDropped(rest)
		handled = true
	}
	return handled
}

// Start синхронно вставляет заглушку в позицию каретки (или в конец
// документа без выделения), ставит каретку в новый пустой параграф за
// ней и запускает фоновую загрузку. Редактор остается интерактивным,
// параллельные загрузки допустимы.
func (m *Manager) Start(tx *document.Tx, f dispatch.File) (*Task, error) {
	id := uuid.Must(uuid.NewV4()).String()

	kind := nodes.KindImage
	if contentType(f) == "image/gif" {
		kind = nodes.KindGif
	}
	placeholder := nodes.NewUploadPlaceholder(kind, f.Name, id)
	trailing := nodes.NewParagraph()

	var after *nodes.Key
	if key, _, ok := tx.Selection().Caret(); ok {
		after = &key
	}
	if err := tx.InsertBlocks(after, []nodes.Node{placeholder}); err != nil {
		return nil, err
	}
	if err := tx.InsertAfter(placeholder.Key(), trailing); err != nil {
		return nil, err
	}
	tx.Selection().SetCaret(trailing.Key(), 0)

	task := &Task{
		ID:             id,
		PlaceholderKey: placeholder.Key(),
		Status:         StatusPending,
		StartedAt:      time.Now(),
	}
	m.mu.Lock()
	m.tasks[id] = task
	m.mu.Unlock()
	uploadsTotal.WithLabelValues("started").Inc()

	data := bytes.Clone(f.Data)
	go m.run(task, f.Name, contentType(f), data)
	return task, nil
}

// Task возвращает задачу по uploadId.
func (m *Manager) Task(id string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

func (m *Manager) run(task *Task, filename, contentType string, data []byte) {
	data, width, height := prepareImage(contentType, data)

	assetURL, err := m.store.SaveAsset(context.Background(), uuid.FromStringOrNil(task.ID), contentType, data)
	if err != nil {
		m.fail(task, filename, err)
		return
	}
	m.succeed(task, assetURL.String(), width, height)
}

// succeed заменяет заглушку финальной нодой. Заглушка ищется по
// uploadId: нода могла переместиться, но ключ и индекс стабильны.
// Если пользователь успел удалить заглушку, результат молча отбрасывается.
func (m *Manager) succeed(task *Task, src string, width, height int) {
	m.schedule(func(tx *document.Tx) error {
		m.setStatus(task, StatusSucceeded)
		uploadsTotal.WithLabelValues("succeeded").Inc()

		placeholder, ok := tx.ByUpload(task.ID)
		if !ok {
			slog.Debug("Upload placeholder removed by user, drop result", "uploadId", task.ID)
			return nil
		}
		old := placeholder.(*nodes.Image)
		var final *nodes.Image
		if old.Kind() == nodes.KindGif {
			final = nodes.NewGif(src, old.Alt, width, height)
		} else {
			final = nodes.NewImage(src, old.Alt, width, height)
		}
		return tx.Replace(placeholder.Key(), final)
	})
}

// fail удаляет заглушку и поднимает ошибку пользователю. Автоматических
// повторов нет.
func (m *Manager) fail(task *Task, filename string, cause error) {
	m.schedule(func(tx *document.Tx) error {
		m.setStatus(task, StatusFailed)
		uploadsTotal.WithLabelValues("failed").Inc()
		slog.Error("Upload failed", "uploadId", task.ID, "file", filename, "err", cause)

		if m.onError != nil {
			m.onError(filename, cause)
		}
		placeholder, ok := tx.ByUpload(task.ID)
		if !ok {
			return nil
		}
		return tx.Remove(placeholder.Key())
	})
}

func (m *Manager) setStatus(task *Task, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.Status = status
	if status != StatusPending {
		delete(m.tasks, task.ID)
	}
}

// Sweep переводит в ошибку задачи, висящие в pending дольше maxAge.
// Вызывается по расписанию, чтобы документ не носил мертвые заглушки.
func (m *Manager) Sweep(maxAge time.Duration) {
	m.mu.Lock()
	var stale []*Task
	for _, task := range m.tasks {
		if task.Status == StatusPending && time.Since(task.StartedAt) > maxAge {
			stale = append(stale, task)
		}
	}
	m.mu.Unlock()

	for _, task := range stale {
		m.fail(task, "", fmt.Errorf("upload stuck pending for more than %s", maxAge))
	}
}

// prepareImage определяет натуральные размеры и ужимает слишком широкие
// jpeg/png, кодируя результат обратно в исходный формат. Gif не трогаем:
// пережатие убивает анимацию. При неудаче разбора размеры подменяются
// безопасными значениями по умолчанию.
func prepareImage(contentType string, data []byte) ([]byte, int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		slog.Warn("Decode image dimensions failed, use fallback", "err", err)
		return data, FallbackWidth, FallbackHeight
	}

	if cfg.Width <= maxAssetWidth || contentType == "image/gif" {
		return data, cfg.Width, cfg.Height
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, cfg.Width, cfg.Height
	}
	scaled := resize.Resize(maxAssetWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if contentType == "image/png" {
		err = png.Encode(&buf, scaled)
	} else {
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return data, cfg.Width, cfg.Height
	}
	bounds := scaled.Bounds()
	return buf.Bytes(), bounds.Dx(), bounds.Dy()
}
