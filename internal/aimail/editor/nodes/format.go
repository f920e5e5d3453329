package nodes

// Format - битсет флагов форматирования текстового фрагмента.
// Флаги не вкладываются друг в друга как элементы разметки, а комбинируются.
type Format uint8

const (
	FormatBold Format = 1 << iota
	FormatItalic
	FormatUnderline
	FormatStrike
	FormatCode
)

// Has проверяет наличие флага.
func (f Format) Has(flag Format) bool {
	return f&flag != 0
}

// Toggle переключает флаг.
func (f *Format) Toggle(flag Format) {
	*f ^= flag
}
