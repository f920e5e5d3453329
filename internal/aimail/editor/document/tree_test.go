package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
)

func mustUpdate(t *testing.T, tree *Tree, fn func(tx *Tx) error) {
	t.Helper()
	require.NoError(t, tree.Update(fn))
}

func TestNewTreeHasEmptyParagraph(t *testing.T) {
	tree := NewTree()
	require.Len(t, tree.Root().Children, 1)
	assert.Equal(t, nodes.KindParagraph, tree.Root().Children[0].Kind())
	assert.True(t, tree.IsEmpty())
}

func TestKeyStability(t *testing.T) {
	tree := NewTree()
	p := nodes.NewParagraph(nodes.NewText("стабильный", 0))
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{p})
	})
	key := p.Key()

	// Вставки и удаления соседей не меняют ключ ноды
	sibling := nodes.NewParagraph(nodes.NewText("сосед", 0))
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.InsertBefore(key, sibling)
	})
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.Remove(sibling.Key())
	})

	n, ok := tree.Node(key)
	require.True(t, ok)
	assert.Equal(t, key, n.Key())
	assert.Equal(t, "стабильный", nodes.TextContent(n))
}

func TestRemoveLastBlockSynthesizesParagraph(t *testing.T) {
	tree := NewTree()
	only := tree.Root().Children[0]
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.Remove(only.Key())
	})

	require.Len(t, tree.Root().Children, 1)
	assert.Equal(t, nodes.KindParagraph, tree.Root().Children[0].Kind())
	assert.NotEqual(t, only.Key(), tree.Root().Children[0].Key(), "ключи не переиспользуются")
}

func TestFailedTransactionStillRepairsEmptyRoot(t *testing.T) {
	tree := NewTree()
	only := tree.Root().Children[0]

	// Мутации применяются сразу, поэтому отклоненная транзакция тоже
	// обязана оставить документ с хотя бы одним блоком.
	err := tree.Update(func(tx *Tx) error {
		if err := tx.Remove(only.Key()); err != nil {
			return err
		}
		return tx.Remove(tree.Root().Key())
	})
	require.ErrorIs(t, err, ErrRemoveRoot)

	require.Len(t, tree.Root().Children, 1)
	assert.Equal(t, nodes.KindParagraph, tree.Root().Children[0].Kind())
}

func TestRemoveRootDisallowed(t *testing.T) {
	tree := NewTree()
	err := tree.Update(func(tx *Tx) error {
		return tx.Remove(tree.Root().Key())
	})
	assert.ErrorIs(t, err, ErrRemoveRoot)
}

func TestInsertBlocksReplacesLonePlaceholder(t *testing.T) {
	tree := NewTree()
	placeholder := tree.Root().Children[0]

	h := nodes.NewHeading(1, nodes.NewText("Title", 0))
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{h})
	})

	require.Len(t, tree.Root().Children, 1)
	assert.Equal(t, h.Key(), tree.Root().Children[0].Key())
	_, ok := tree.Node(placeholder.Key())
	assert.False(t, ok, "параграф-заглушка удален")
}

func TestInsertBlocksAfterKey(t *testing.T) {
	tree := NewTree()
	first := nodes.NewParagraph(nodes.NewText("один", 0))
	second := nodes.NewParagraph(nodes.NewText("два", 0))
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{first, second})
	})

	mid := nodes.NewDivider()
	firstKey := first.Key()
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.InsertBlocks(&firstKey, []nodes.Node{mid})
	})

	blocks := tree.Blocks()
	require.Len(t, blocks, 3)
	assert.Equal(t, mid.Key(), blocks[1].Key())
}

func TestUploadIndex(t *testing.T) {
	tree := NewTree()
	placeholder := nodes.NewUploadPlaceholder(nodes.KindImage, "img", "upload-a")
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{placeholder})
	})

	n, ok := tree.ByUpload("upload-a")
	require.True(t, ok)
	assert.Equal(t, placeholder.Key(), n.Key())

	// Перемещение не ломает адресацию по uploadId
	other := nodes.NewParagraph(nodes.NewText("x", 0))
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.InsertBefore(placeholder.Key(), other)
	})
	n, ok = tree.ByUpload("upload-a")
	require.True(t, ok)
	assert.Equal(t, placeholder.Key(), n.Key())

	// После удаления - явный промах индекса
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.Remove(placeholder.Key())
	})
	_, ok = tree.ByUpload("upload-a")
	assert.False(t, ok)
}

func TestReplaceKeepsPosition(t *testing.T) {
	tree := NewTree()
	placeholder := nodes.NewUploadPlaceholder(nodes.KindImage, "img", "upload-b")
	tail := nodes.NewParagraph(nodes.NewText("после", 0))
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{placeholder, tail})
	})

	final := nodes.NewImage("https://files/x.png", "img", 400, 300)
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.Replace(placeholder.Key(), final)
	})

	blocks := tree.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, final.Key(), blocks[0].Key())
	_, ok := tree.ByUpload("upload-b")
	assert.False(t, ok, "индекс загрузок очищен заменой")
}

func TestMerge(t *testing.T) {
	tree := NewTree()
	a := nodes.NewParagraph(nodes.NewText("a", 0))
	b := nodes.NewParagraph(nodes.NewText("b", 0))
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{a, b})
	})

	var textKey nodes.Key
	var offset int
	mustUpdate(t, tree, func(tx *Tx) error {
		var err error
		textKey, offset, err = tx.Merge(a.Key(), b.Key())
		return err
	})

	blocks := tree.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, "ab", nodes.TextContent(blocks[0]))
	assert.Equal(t, 1, offset)

	text, ok := tree.Node(textKey)
	require.True(t, ok)
	assert.Equal(t, "ab", text.(*nodes.Text).Content)
}

func TestMergeIntoEmptyBlock(t *testing.T) {
	tree := NewTree()
	empty := nodes.NewParagraph()
	b := nodes.NewHeading(2, nodes.NewText("tail", 0))
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{empty, b})
	})

	mustUpdate(t, tree, func(tx *Tx) error {
		_, _, err := tx.Merge(empty.Key(), b.Key())
		return err
	})

	require.Len(t, tree.Blocks(), 1)
	assert.Equal(t, "tail", nodes.TextContent(tree.Blocks()[0]))
}

func TestRemoveClearsSelection(t *testing.T) {
	tree := NewTree()
	div := nodes.NewDivider()
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{div})
	})

	tree.Selection().SelectNode(div.Key())
	assert.Equal(t, NodeSelected, tree.Selection().State())

	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.Remove(div.Key())
	})
	assert.Equal(t, NoSelection, tree.Selection().State())
}

func TestChangeNotificationOncePerTransaction(t *testing.T) {
	tree := NewTree()
	var calls int
	tree.OnChange(func(dirty []nodes.Key) { calls++ })

	mustUpdate(t, tree, func(tx *Tx) error {
		if err := tx.InsertBlocks(nil, []nodes.Node{nodes.NewDivider()}); err != nil {
			return err
		}
		return tx.InsertBlocks(nil, []nodes.Node{nodes.NewParagraph(nodes.NewText("x", 0))})
	})

	assert.Equal(t, 1, calls)
}

func TestDuplicateKeyRejected(t *testing.T) {
	tree := NewTree()
	p := nodes.NewParagraph(nodes.NewText("x", 0))
	mustUpdate(t, tree, func(tx *Tx) error {
		return tx.InsertBlocks(nil, []nodes.Node{p})
	})

	err := tree.Update(func(tx *Tx) error {
		return tx.Append(tree.Root().Key(), p)
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestSelectionStates(t *testing.T) {
	var sel Selection
	assert.Equal(t, NoSelection, sel.State())

	sel.SetCaret("k1", 3)
	assert.Equal(t, RangeCollapsed, sel.State())
	key, off, ok := sel.Caret()
	require.True(t, ok)
	assert.Equal(t, nodes.Key("k1"), key)
	assert.Equal(t, 3, off)

	sel.SetRange("k1", 0, "k2", 4)
	assert.Equal(t, RangeExpanded, sel.State())
	_, _, ok = sel.Caret()
	assert.False(t, ok)

	sel.ToggleNode("k3")
	assert.Equal(t, NodeSelected, sel.State())
	sel.ToggleNode("k4")
	assert.Len(t, sel.SelectedNodes(), 2)
	sel.ToggleNode("k3")
	assert.Equal(t, []nodes.Key{"k4"}, sel.SelectedNodes())
	sel.ToggleNode("k4")
	assert.Equal(t, NoSelection, sel.State())
}
