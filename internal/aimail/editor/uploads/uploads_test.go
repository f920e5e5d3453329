package uploads

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/dispatch"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/document"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
)

// fakeStore умеет придерживать загрузку до явного release, чтобы тест
// управлял порядком завершений.
type fakeStore struct {
	mu       sync.Mutex
	blocking bool
	gate     map[string]chan struct{}
	err      error
}

func newFakeStore(blocking bool) *fakeStore {
	return &fakeStore{blocking: blocking, gate: make(map[string]chan struct{})}
}

func (s *fakeStore) ch(id string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.gate[id]
	if !ok {
		c = make(chan struct{})
		s.gate[id] = c
	}
	return c
}

func (s *fakeStore) release(id string) {
	c := s.ch(id)
	select {
	case <-c:
	default:
		close(c)
	}
}

func (s *fakeStore) SaveAsset(ctx context.Context, name uuid.UUID, contentType string, data []byte) (*url.URL, error) {
	s.mu.Lock()
	blocking := s.blocking
	err := s.err
	s.mu.Unlock()
	if blocking {
		<-s.ch(name.String())
	}
	if err != nil {
		return nil, err
	}
	return url.Parse("https://assets.example.com/" + name.String())
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// fixture сериализует доступ к дереву так же, как это делает редактор.
type fixture struct {
	treeMu  sync.Mutex
	tree    *document.Tree
	store   *fakeStore
	manager *Manager

	mu       sync.Mutex
	failures []string
	dropped  []dispatch.File
}

func newFixture(blocking bool) *fixture {
	f := &fixture{tree: document.NewTree(), store: newFakeStore(blocking)}
	schedule := func(fn func(tx *document.Tx) error) {
		f.treeMu.Lock()
		defer f.treeMu.Unlock()
		_ = f.tree.Update(fn)
	}
	f.manager = NewManager(f.store, schedule,
		func(filename string, err error) {
			f.mu.Lock()
			f.failures = append(f.failures, filename)
			f.mu.Unlock()
		},
		func(files []dispatch.File) {
			f.mu.Lock()
			f.dropped = append(f.dropped, files...)
			f.mu.Unlock()
		})
	return f
}

func (f *fixture) update(t *testing.T, fn func(tx *document.Tx) error) {
	t.Helper()
	f.treeMu.Lock()
	defer f.treeMu.Unlock()
	require.NoError(t, f.tree.Update(fn))
}

func (f *fixture) start(t *testing.T, file dispatch.File) *Task {
	t.Helper()
	var task *Task
	f.update(t, func(tx *document.Tx) error {
		var err error
		task, err = f.manager.Start(tx, file)
		return err
	})
	return task
}

func (f *fixture) waitDone(t *testing.T, id string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		_, pending := f.manager.Task(id)
		return !pending
	}, time.Second, 5*time.Millisecond)
}

func (f *fixture) images() []*nodes.Image {
	f.treeMu.Lock()
	defer f.treeMu.Unlock()
	var out []*nodes.Image
	f.tree.Walk(func(n nodes.Node) bool {
		if img, ok := n.(*nodes.Image); ok {
			out = append(out, img)
		}
		return false
	})
	return out
}

func (f *fixture) hasUpload(id string) bool {
	f.treeMu.Lock()
	defer f.treeMu.Unlock()
	_, ok := f.tree.ByUpload(id)
	return ok
}

func TestStartInsertsPlaceholderAndTrailingParagraph(t *testing.T) {
	f := newFixture(true)

	file := dispatch.File{Name: "cat.png", ContentType: "image/png", Data: pngBytes(t, 10, 10)}
	var task *Task
	f.update(t, func(tx *document.Tx) error {
		var err error
		task, err = f.manager.Start(tx, file)
		if err != nil {
			return err
		}
		ph, ok := tx.ByUpload(task.ID)
		require.True(t, ok)
		assert.True(t, nodes.IsUploading(ph))

		// каретка ушла в пустой параграф после заглушки
		key, offset, ok := tx.Selection().Caret()
		require.True(t, ok)
		assert.Equal(t, 0, offset)
		caretNode, ok := tx.Node(key)
		require.True(t, ok)
		assert.Equal(t, nodes.KindParagraph, caretNode.Kind())
		return nil
	})

	f.store.release(task.ID)
	f.waitDone(t, task.ID)
}

func TestOutOfOrderCompletionsResolveOwnPlaceholders(t *testing.T) {
	f := newFixture(true)

	taskA := f.start(t, dispatch.File{Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 10, 10)})
	taskB := f.start(t, dispatch.File{Name: "b.png", ContentType: "image/png", Data: pngBytes(t, 20, 20)})

	// B завершается раньше A
	f.store.release(taskB.ID)
	f.waitDone(t, taskB.ID)
	f.store.release(taskA.ID)
	f.waitDone(t, taskA.ID)

	imgs := f.images()
	require.Len(t, imgs, 2)
	assert.Contains(t, imgs[0].Src, taskA.ID)
	assert.Contains(t, imgs[1].Src, taskB.ID)
	assert.Equal(t, 10, imgs[0].Width)
	assert.Equal(t, 20, imgs[1].Width)
	assert.False(t, imgs[0].Uploading)
	assert.False(t, imgs[1].Uploading)
}

func TestFailureRemovesPlaceholderAndReportsError(t *testing.T) {
	f := newFixture(false)
	f.store.err = errors.New("storage unavailable")

	task := f.start(t, dispatch.File{Name: "broken.png", ContentType: "image/png", Data: pngBytes(t, 5, 5)})
	f.waitDone(t, task.ID)

	assert.False(t, f.hasUpload(task.ID))
	assert.Empty(t, f.images())
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{"broken.png"}, f.failures)
}

func TestCompletionAfterPlaceholderRemovedIsDropped(t *testing.T) {
	f := newFixture(true)
	task := f.start(t, dispatch.File{Name: "late.png", ContentType: "image/png", Data: pngBytes(t, 5, 5)})

	f.update(t, func(tx *document.Tx) error {
		ph, ok := tx.ByUpload(task.ID)
		require.True(t, ok)
		return tx.Remove(ph.Key())
	})

	f.store.release(task.ID)
	f.waitDone(t, task.ID)

	// результат отброшен молча: документ без картинок и без ошибок
	assert.Empty(t, f.images())
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.failures)
}

func TestHandleDropSplitsImagesAndOtherFiles(t *testing.T) {
	f := newFixture(true)
	files := []dispatch.File{
		{Name: "pic.png", ContentType: "image/png", Data: pngBytes(t, 5, 5)},
		{Name: "report.pdf", ContentType: "application/pdf", Data: []byte("%PDF-")},
	}
	f.update(t, func(tx *document.Tx) error {
		assert.True(t, f.manager.HandleDrop(tx, files))
		return nil
	})

	f.mu.Lock()
	require.Len(t, f.dropped, 1)
	assert.Equal(t, "report.pdf", f.dropped[0].Name)
	f.mu.Unlock()

	imgs := f.images()
	require.Len(t, imgs, 1)
	assert.True(t, imgs[0].Uploading)
	f.store.release(imgs[0].UploadID)
	f.waitDone(t, imgs[0].UploadID)
}

func TestGifKeepsKindAfterCompletion(t *testing.T) {
	f := newFixture(false)
	// вид решает MIME-тип, для пробы размеров годится любой битмап
	task := f.start(t, dispatch.File{Name: "fun.gif", ContentType: "image/gif", Data: pngBytes(t, 4, 4)})
	f.waitDone(t, task.ID)

	imgs := f.images()
	require.Len(t, imgs, 1)
	assert.Equal(t, nodes.KindGif, imgs[0].Kind())
}

func TestSweepFailsStaleTasks(t *testing.T) {
	f := newFixture(true)
	task := f.start(t, dispatch.File{Name: "slow.png", ContentType: "image/png", Data: pngBytes(t, 5, 5)})
	t.Cleanup(func() { f.store.release(task.ID) })

	f.manager.Sweep(0)

	assert.Eventually(t, func() bool {
		return !f.hasUpload(task.ID)
	}, time.Second, 5*time.Millisecond)
}

func TestPrepareImageFallbackDimensions(t *testing.T) {
	data, w, h := prepareImage("image/png", []byte("not an image"))
	assert.Equal(t, []byte("not an image"), data)
	assert.Equal(t, FallbackWidth, w)
	assert.Equal(t, FallbackHeight, h)
}

func TestPrepareImageDownscalesWideImages(t *testing.T) {
	data, w, h := prepareImage("image/png", pngBytes(t, maxAssetWidth*2, 100))
	assert.Equal(t, maxAssetWidth, w)
	assert.Equal(t, 50, h)
	require.NotEmpty(t, data)

	// ужатый png остается png: байты и content type не расходятся
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestPrepareImageKeepsJpegFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, maxAssetWidth*2, 100)), nil))

	data, w, h := prepareImage("image/jpeg", buf.Bytes())
	assert.Equal(t, maxAssetWidth, w)
	assert.Equal(t, 50, h)

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}
