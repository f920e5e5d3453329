package palette

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenResetsState(t *testing.T) {
	p := New(nil)
	p.Open(ModeSlash)
	p.SetInput("head")
	p.MoveDown()

	p.Open(ModeSlash)
	assert.Equal(t, "", p.Input())
	assert.Equal(t, 0, p.Active())
	assert.True(t, p.IsOpen())
}

func TestFilterHeadings(t *testing.T) {
	p := New(nil)
	p.Open(ModeSlash)
	p.SetInput("head")

	labels := labelsOf(p.Filtered())
	assert.Contains(t, labels, "Heading 1")
	assert.Contains(t, labels, "Heading 2")
	assert.Contains(t, labels, "Heading 3")
	assert.NotContains(t, labels, "Divider")
}

func TestEmptyInputShowsFirstFiveInOrder(t *testing.T) {
	p := New(nil)
	p.Open(ModeSlash)

	filtered := p.Filtered()
	require.Len(t, filtered, 5)
	assert.Equal(t, []string{"Heading 1", "Heading 2", "Heading 3", "Bulleted list", "Numbered list"}, labelsOf(filtered))
}

func TestFilterByKeyword(t *testing.T) {
	p := New(nil)
	p.Open(ModeSlash)
	p.SetInput("hr")

	labels := labelsOf(p.Filtered())
	assert.Contains(t, labels, "Divider")
}

func TestNotFoundState(t *testing.T) {
	p := New(nil)
	p.Open(ModeSlash)
	p.SetInput("квантовый телепорт")
	assert.Empty(t, p.Filtered())
	assert.False(t, p.Enter())
	assert.True(t, p.IsOpen(), "палитра остается открытой в состоянии не найдено")
}

func TestArrowClamp(t *testing.T) {
	p := New(nil)
	p.Open(ModeSlash)
	p.SetInput("heading 1")

	require.Len(t, p.Filtered(), 1)
	p.MoveDown()
	p.MoveDown()
	assert.Equal(t, 0, p.Active())
	p.MoveUp()
	assert.Equal(t, 0, p.Active())
}

func TestEnterEmitsSlashCommand(t *testing.T) {
	var got *Result
	p := New(func(r Result) { got = &r })
	p.Open(ModeSlash)
	p.SetInput("divider")

	require.True(t, p.Enter())
	require.NotNil(t, got)
	assert.Equal(t, "divider", got.Command)
	assert.False(t, p.IsOpen())
}

func TestDigitShortcut(t *testing.T) {
	var got *Result
	p := New(func(r Result) { got = &r })
	p.Open(ModeSlash)

	require.True(t, p.Digit(2))
	require.NotNil(t, got)
	assert.Equal(t, "heading", got.Command)
	assert.Equal(t, "2", got.Value)
	assert.False(t, p.IsOpen())
}

func TestDigitIgnoredWithInput(t *testing.T) {
	var called bool
	p := New(func(r Result) { called = true })
	p.Open(ModeSlash)
	p.SetInput("head")

	assert.False(t, p.Digit(1))
	assert.False(t, called)
	assert.True(t, p.IsOpen())
}

func TestDigitOutOfRange(t *testing.T) {
	p := New(nil)
	p.Open(ModeSlash)
	assert.False(t, p.Digit(9))
	assert.False(t, p.Digit(0))
}

func TestSnippetMode(t *testing.T) {
	var got *Result
	p := New(func(r Result) { got = &r })
	p.Open(ModeSnippets)
	p.SetInput("подпись")

	require.True(t, p.Enter())
	require.NotNil(t, got)
	assert.Empty(t, got.Command)
	assert.Contains(t, got.Snippet, "С уважением")
}

func TestEscape(t *testing.T) {
	var called bool
	p := New(func(r Result) { called = true })
	p.Open(ModeSnippets)
	p.Escape()
	assert.False(t, p.IsOpen())
	assert.False(t, called)
}

func labelsOf(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Label)
	}
	return out
}
