// Определяет политику безопасности для HTML-контента письма. Политика
// применяется ко всему внешнему HTML до разбора на блоки и предотвращает
// XSS: остаются только блочные и строчные элементы, которые умеет
// представлять модель нод композера.
//
// Основные возможности:
//   - Белый список тегов: p, h1-h3, списки, hr, img, br, строчное форматирование.
//   - Ограничение атрибутов img и ссылок-кнопок регулярными выражениями.
//   - Идемпотентная очистка: повторная очистка не меняет результат.
package policy

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var UgcPolicy *bluemonday.Policy = bluemonday.NewPolicy()

// StripTagsPolicy убирает всю разметку, оставляя только текст.
var StripTagsPolicy *bluemonday.Policy = bluemonday.StrictPolicy()

func init() {
	sizeRegexp := regexp.MustCompile(`^\d{1,4}$`)
	buttonClassRegexp := regexp.MustCompile(`^composer-button$`)

	UgcPolicy.AllowElements(
		"p", "h1", "h2", "h3",
		"ul", "ol", "li",
		"hr", "br", "div",
		"strong", "b", "em", "i", "u", "s", "del", "code",
		"button",
	)

	UgcPolicy.AllowImages()
	UgcPolicy.AllowAttrs("width", "height").Matching(sizeRegexp).OnElements("img")

	UgcPolicy.AllowAttrs("class").Matching(buttonClassRegexp).OnElements("a")
	UgcPolicy.AllowAttrs("href").OnElements("a")
	UgcPolicy.RequireNoFollowOnLinks(false)
}

// CleanHTML очищает внешний HTML до безопасного подмножества. Блочный
// порядок содержимого сохраняется, функция идемпотентна.
func CleanHTML(html string) string {
	return UgcPolicy.Sanitize(html)
}

// StripHTML возвращает только текстовое содержимое разметки.
func StripHTML(html string) string {
	return StripTagsPolicy.Sanitize(html)
}
