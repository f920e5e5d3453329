package nodes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := []Node{
		NewHeading(2, NewText("Заголовок", 0)),
		NewParagraph(NewText("простой ", 0), NewText("жирный", FormatBold|FormatItalic)),
		NewList(true, NewListItem(NewText("первый", 0)), NewListItem(NewText("второй", 0))),
		NewDivider(),
		NewImage("https://files.example.com/a.png", "схема", 640, 480),
		NewGif("https://files.example.com/b.gif", "", 200, 200),
		NewButton("Открыть"),
	}

	data, err := EncodeNodes(original)
	require.NoError(t, err)

	restored, err := DecodeNodes(data)
	require.NoError(t, err)
	require.Len(t, restored, len(original))

	for i := range original {
		assert.Equal(t, original[i].Kind(), restored[i].Kind(), "node %d", i)
		// Ключи при импорте генерируются заново
		assert.NotEqual(t, original[i].Key(), restored[i].Key(), "node %d", i)
	}

	h := restored[0].(*Heading)
	assert.Equal(t, 2, h.Level)
	assert.Equal(t, "Заголовок", TextContent(h))

	bold := restored[1].(*Paragraph).Children[1].(*Text)
	assert.True(t, bold.Format.Has(FormatBold))
	assert.True(t, bold.Format.Has(FormatItalic))
	assert.False(t, bold.Format.Has(FormatCode))

	list := restored[2].(*List)
	assert.True(t, list.Ordered)
	require.Len(t, list.Children, 2)

	img := restored[4].(*Image)
	assert.Equal(t, 640, img.Width)
	assert.Equal(t, KindImage, img.Kind())
	assert.Equal(t, KindGif, restored[5].Kind())
}

func TestRegistryCoversAllSerializableKinds(t *testing.T) {
	kinds := []Kind{
		KindParagraph, KindHeading, KindText, KindList, KindListItem,
		KindDivider, KindImage, KindGif, KindButton,
	}
	for _, kind := range kinds {
		def, ok := registry[kind]
		require.True(t, ok, "kind %s", kind)
		assert.NotNil(t, def.decode, "kind %s", kind)
		assert.NotNil(t, def.encode, "kind %s", kind)
		assert.NotNil(t, def.markup, "kind %s", kind)
		assert.NotNil(t, def.needsRender, "kind %s", kind)
	}
	// корень не сериализуется, его дети пишутся как массив верхнего уровня
	_, ok := registry[KindRoot]
	assert.False(t, ok)
}

func TestDecodeSkipsUnknownKind(t *testing.T) {
	data := []byte(`[
		{"type":"paragraph","version":1,"content":[{"type":"text","version":1,"text":"ok"}]},
		{"type":"hologram","version":1},
		{"type":"divider","version":1}
	]`)

	ns, err := DecodeNodes(data)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, KindParagraph, ns[0].Kind())
	assert.Equal(t, KindDivider, ns[1].Kind())
}

func TestDecodeSkipsNewerVersion(t *testing.T) {
	data := []byte(`[{"type":"divider","version":99},{"type":"button","version":1,"text":"ok"}]`)

	ns, err := DecodeNodes(data)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, KindButton, ns[0].Kind())
}

func TestDecodeNodeUnknownKindError(t *testing.T) {
	_, err := DecodeNode(json.RawMessage(`{"type":"hologram","version":1}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSerializedShape(t *testing.T) {
	img := NewUploadPlaceholder(KindImage, "фото", "upload-1")
	raw, err := EncodeNode(img)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "image", fields["type"])
	assert.Equal(t, float64(1), fields["version"])
	assert.Equal(t, true, fields["uploading"])
	assert.Equal(t, "upload-1", fields["upload_id"])
}

func TestNeedsRender(t *testing.T) {
	a := NewText("ab", FormatBold)
	b := NewText("ab", FormatBold)
	c := NewText("ab", FormatBold|FormatStrike)

	assert.False(t, NeedsRender(a, b), "равные атрибуты - без перерисовки")
	assert.True(t, NeedsRender(a, c))
	assert.True(t, NeedsRender(a, NewDivider()))
	assert.False(t, NeedsRender(NewDivider(), NewDivider()))

	img1 := NewImage("u", "a", 10, 10)
	img2 := NewImage("u", "a", 10, 10)
	assert.False(t, NeedsRender(img1, img2))
	img2.Uploading = true
	assert.True(t, NeedsRender(img1, img2))
}

func TestMarkup(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"paragraph", NewParagraph(NewText("a <b>", 0)), "<p>a &lt;b&gt;</p>"},
		{"heading", NewHeading(1, NewText("Title", 0)), "<h1>Title</h1>"},
		{"bold italic", NewParagraph(NewText("x", FormatBold|FormatItalic)), "<p><strong><em>x</em></strong></p>"},
		{"soft break", NewParagraph(NewText("a\nb", 0)), "<p>a<br>b</p>"},
		{"list", NewList(false, NewListItem(NewText("item", 0))), "<ul><li>item</li></ul>"},
		{"ordered", NewList(true, NewListItem(NewText("item", 0))), "<ol><li>item</li></ol>"},
		{"divider", NewDivider(), "<hr>"},
		{"image", NewImage("https://e/x.png", "alt", 400, 300), `<img src="https://e/x.png" alt="alt" width="400" height="300">`},
		{"uploading image hidden", NewUploadPlaceholder(KindImage, "x", "id"), ""},
		{"button", NewButton("Go"), `<a class="composer-button" href="#">Go</a>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Markup(tt.node))
		})
	}
}

func TestKeysUnique(t *testing.T) {
	seen := make(map[Key]struct{})
	for i := 0; i < 1000; i++ {
		k := NewKey()
		_, dup := seen[k]
		require.False(t, dup)
		seen[k] = struct{}{}
	}
}
