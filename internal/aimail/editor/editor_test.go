package editor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/convert"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/dispatch"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/document"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/palette"
)

func newTestEditor(t *testing.T, opts Options) *Editor {
	t.Helper()
	e := New(opts)
	t.Cleanup(e.Close)
	<-e.Ready()
	return e
}

// seedParagraph кладет в документ один параграф с единственным
// текстовым фрагментом и возвращает фрагмент.
func seedParagraph(t *testing.T, e *Editor, content string) *nodes.Text {
	t.Helper()
	run := nodes.NewText(content, 0)
	para := nodes.NewParagraph(run)
	require.NoError(t, e.tree.Update(func(tx *document.Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{para})
	}))
	return run
}

func blockTexts(e *Editor) []string {
	var out []string
	for _, block := range e.tree.Blocks() {
		out = append(out, nodes.TextContent(block))
	}
	return out
}

func TestEnterSplitsAndBackspaceMergesBack(t *testing.T) {
	e := newTestEditor(t, Options{})
	run := seedParagraph(t, e, "ab")
	e.tree.Selection().SetCaret(run.Key(), 1)

	require.True(t, e.Dispatch(dispatch.CmdEnter, dispatch.Payload{}))
	assert.Equal(t, []string{"a", "b"}, blockTexts(e))

	// каретка в начале нового блока
	key, offset, ok := e.tree.Selection().Caret()
	require.True(t, ok)
	assert.Equal(t, 0, offset)
	assert.Equal(t, "b", nodes.TextContent(mustNode(t, e, key)))

	require.True(t, e.Dispatch(dispatch.CmdBackspace, dispatch.Payload{}))
	assert.Equal(t, []string{"ab"}, blockTexts(e))

	_, offset, ok = e.tree.Selection().Caret()
	require.True(t, ok)
	assert.Equal(t, 1, offset)
}

func mustNode(t *testing.T, e *Editor, key nodes.Key) nodes.Node {
	t.Helper()
	n, ok := e.tree.Node(key)
	require.True(t, ok)
	return n
}

func TestShiftEnterInsertsSoftBreak(t *testing.T) {
	e := newTestEditor(t, Options{})
	run := seedParagraph(t, e, "ab")
	e.tree.Selection().SetCaret(run.Key(), 1)

	require.True(t, e.Dispatch(dispatch.CmdEnter, dispatch.Payload{Shift: true}))
	assert.Equal(t, []string{"a\nb"}, blockTexts(e))

	_, offset, _ := e.tree.Selection().Caret()
	assert.Equal(t, 2, offset)
}

func TestEnterOnAtomicInsertsParagraphAfter(t *testing.T) {
	e := newTestEditor(t, Options{})
	divider := nodes.NewDivider()
	require.NoError(t, e.tree.Update(func(tx *document.Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{divider})
	}))
	e.tree.Selection().SetCaret(divider.Key(), 0)

	require.True(t, e.Dispatch(dispatch.CmdEnter, dispatch.Payload{}))

	next, ok := e.tree.NextSibling(divider.Key())
	require.True(t, ok)
	assert.Equal(t, nodes.KindParagraph, next.Kind())
	key, _, ok := e.tree.Selection().Caret()
	require.True(t, ok)
	assert.Equal(t, next.Key(), key)
}

func TestBackspaceBeforeAtomicSelectsInsteadOfDeleting(t *testing.T) {
	e := newTestEditor(t, Options{})
	image := nodes.NewImage("https://example.com/a.png", "", 10, 10)
	run := nodes.NewText("", 0)
	require.NoError(t, e.tree.Update(func(tx *document.Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{image, nodes.NewParagraph(run)})
	}))
	e.tree.Selection().SetCaret(run.Key(), 0)

	require.True(t, e.Dispatch(dispatch.CmdBackspace, dispatch.Payload{}))
	assert.Equal(t, document.NodeSelected, e.tree.Selection().State())
	assert.Equal(t, []nodes.Key{image.Key()}, e.tree.Selection().SelectedNodes())

	// повторное нажатие удаляет выделенную ноду
	require.True(t, e.Dispatch(dispatch.CmdBackspace, dispatch.Payload{}))
	_, ok := e.tree.Node(image.Key())
	assert.False(t, ok)
}

func TestUploadingNodeIgnoresDeletionAndSelection(t *testing.T) {
	e := newTestEditor(t, Options{})
	placeholder := nodes.NewUploadPlaceholder(nodes.KindImage, "cat.png", "u1")
	run := nodes.NewText("", 0)
	require.NoError(t, e.tree.Update(func(tx *document.Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{placeholder, nodes.NewParagraph(run)})
	}))
	e.tree.Selection().SetCaret(run.Key(), 0)

	assert.False(t, e.Dispatch(dispatch.CmdBackspace, dispatch.Payload{}))
	assert.False(t, e.Dispatch(dispatch.CmdDelete, dispatch.Payload{}))
	_, ok := e.tree.Node(placeholder.Key())
	assert.True(t, ok)

	e.Click(placeholder.Key())
	assert.NotEqual(t, document.NodeSelected, e.tree.Selection().State())
}

func TestClickTogglesNodeSelection(t *testing.T) {
	e := newTestEditor(t, Options{})
	divider := nodes.NewDivider()
	require.NoError(t, e.tree.Update(func(tx *document.Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{divider})
	}))

	e.Click(divider.Key())
	assert.Equal(t, document.NodeSelected, e.tree.Selection().State())
	e.Click(divider.Key())
	assert.Equal(t, document.NoSelection, e.tree.Selection().State())

	e.Click(divider.Key())
	e.Escape()
	assert.Equal(t, document.NoSelection, e.tree.Selection().State())
}

func TestFormatChordTogglesBold(t *testing.T) {
	e := newTestEditor(t, Options{})
	run := seedParagraph(t, e, "ab")
	e.tree.Selection().SetRange(run.Key(), 0, run.Key(), 2)

	require.True(t, e.Dispatch(dispatch.CmdModifier, dispatch.Payload{Chord: "mod+b"}))
	assert.True(t, run.Format.Has(nodes.FormatBold))

	require.True(t, e.Dispatch(dispatch.CmdModifier, dispatch.Payload{Chord: "mod+b"}))
	assert.False(t, run.Format.Has(nodes.FormatBold))
}

func TestPasteHTMLInsertsBlocks(t *testing.T) {
	e := newTestEditor(t, Options{})
	require.True(t, e.Dispatch(dispatch.CmdPaste, dispatch.Payload{HTML: "<h1>Title</h1><p>body</p>"}))

	blocks := e.GetBlocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, convert.BlockHeading1, blocks[0].Type)
	assert.Equal(t, "Title", blocks[0].Content)
	assert.Equal(t, convert.BlockText, blocks[1].Type)
}

func TestUndoRestoresPreviousState(t *testing.T) {
	e := newTestEditor(t, Options{})
	assert.False(t, e.CanUndo())

	require.NoError(t, e.InsertBlocks([]convert.ParsedBlock{{Type: convert.BlockText, Content: "hello"}}, nil))
	require.True(t, e.CanUndo())

	e.Undo()
	assert.True(t, e.tree.IsEmpty())
}

func TestClearContentIsIdempotent(t *testing.T) {
	e := newTestEditor(t, Options{})
	require.NoError(t, e.InsertBlocks([]convert.ParsedBlock{
		{Type: convert.BlockHeading1, Content: "Title"},
		{Type: convert.BlockText, Content: "body"},
	}, nil))

	require.NoError(t, e.ClearContent())
	require.True(t, e.tree.IsEmpty())
	only := e.tree.Blocks()[0]

	require.NoError(t, e.ClearContent())
	assert.Equal(t, only.Key(), e.tree.Blocks()[0].Key())
}

func TestBodyChangeDebouncedAndEmptySignal(t *testing.T) {
	var mu sync.Mutex
	var emitted []string
	e := newTestEditor(t, Options{
		ExportDelay: 10 * time.Millisecond,
		OnBodyChange: func(html string) {
			mu.Lock()
			emitted = append(emitted, html)
			mu.Unlock()
		},
	})

	require.NoError(t, e.InsertBlocks([]convert.ParsedBlock{{Type: convert.BlockHeading1, Content: "Title"}}, nil))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(emitted) == 1 && emitted[0] != ""
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, e.ClearContent())
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(emitted) == 2 && emitted[1] == ""
	}, time.Second, 5*time.Millisecond)
}

func TestPaletteDividerCommandInsertsDivider(t *testing.T) {
	e := newTestEditor(t, Options{})
	p := e.Palette()
	p.Open(palette.ModeSlash)
	p.SetInput("divider")
	p.Enter()

	assert.False(t, p.IsOpen())
	blocks := e.GetBlocks()
	require.NotEmpty(t, blocks)
	assert.Equal(t, convert.BlockDivider, blocks[0].Type)
}

func TestPaletteSnippetInsertsText(t *testing.T) {
	e := newTestEditor(t, Options{})
	p := e.Palette()
	p.Open(palette.ModeSnippets)
	// "благодарность" выбирает ровно один элемент каталога
	p.SetInput("благодарность")
	require.Len(t, p.Filtered(), 1)
	p.Enter()

	blocks := e.GetBlocks()
	require.NotEmpty(t, blocks)
	assert.Equal(t, convert.BlockText, blocks[0].Type)
	assert.Contains(t, blocks[0].Content, "спасибо за помощь")
}

func TestFocusBlockAndLastTextBlock(t *testing.T) {
	e := newTestEditor(t, Options{})
	run := seedParagraph(t, e, "hello")
	require.NoError(t, e.tree.Update(func(tx *document.Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{nodes.NewDivider()})
	}))

	para, ok := e.tree.BlockOf(run.Key())
	require.True(t, ok)
	last, found := e.GetLastTextBlockID()
	require.True(t, found)
	assert.Equal(t, para.Key(), last)

	e.FocusBlock(para.Key(), 99)
	key, offset, ok := e.tree.Selection().Caret()
	require.True(t, ok)
	assert.Equal(t, run.Key(), key)
	assert.Equal(t, 5, offset)

	// неизвестный ключ - no-op
	e.FocusBlock(nodes.NewKey(), 0)
	key, _, _ = e.tree.Selection().Caret()
	assert.Equal(t, run.Key(), key)
}

func TestInsertLLMContent(t *testing.T) {
	e := newTestEditor(t, Options{})
	require.NoError(t, e.InsertLLMContent("<h2>Plan</h2><ul><li>step</li></ul>", nil))

	blocks := e.GetBlocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, convert.BlockHeading2, blocks[0].Type)
	assert.Equal(t, convert.BlockList, blocks[1].Type)
}
