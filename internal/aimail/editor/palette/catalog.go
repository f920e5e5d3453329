// Пакет palette - модальный, управляемый с клавиатуры пикер команд
// редактора. Два взаимоисключающих режима: слэш-команды вставки блоков
// и готовые текстовые сниппеты. Оба каталога фиксированы и упорядочены.
package palette

// Entry - элемент каталога.
type Entry struct {
	Label       string
	Description string
	Keywords    []string

	// Слэш-команда вставки блока
	Command string
	Value   string

	// Текст сниппета
	Snippet string
}

// Каталог слэш-команд. Порядок определяет выдачу при пустом фильтре.
var slashCatalog = []Entry{
	{Label: "Heading 1", Description: "Крупный заголовок раздела", Keywords: []string{"h1", "title", "заголовок"}, Command: "heading", Value: "1"},
	{Label: "Heading 2", Description: "Средний заголовок", Keywords: []string{"h2", "подзаголовок"}, Command: "heading", Value: "2"},
	{Label: "Heading 3", Description: "Мелкий заголовок", Keywords: []string{"h3"}, Command: "heading", Value: "3"},
	{Label: "Bulleted list", Description: "Маркированный список", Keywords: []string{"ul", "list", "список"}, Command: "list", Value: "bullet"},
	{Label: "Numbered list", Description: "Нумерованный список", Keywords: []string{"ol", "ordered", "список"}, Command: "list", Value: "ordered"},
	{Label: "Divider", Description: "Горизонтальный разделитель", Keywords: []string{"hr", "rule", "линия"}, Command: "divider"},
	{Label: "Image", Description: "Загрузить изображение", Keywords: []string{"img", "photo", "картинка"}, Command: "image"},
	{Label: "Gif", Description: "Вставить gif", Keywords: []string{"giphy", "анимация"}, Command: "gif"},
	{Label: "Button", Description: "Кнопка со ссылкой", Keywords: []string{"cta", "кнопка"}, Command: "button"},
}

// Каталог сниппетов: готовые фрагменты текста письма.
var snippetCatalog = []Entry{
	{Label: "Greeting", Description: "Приветствие", Keywords: []string{"hello", "привет"}, Snippet: "Добрый день!\n"},
	{Label: "Follow-up", Description: "Напоминание о письме", Keywords: []string{"remind", "напоминание"}, Snippet: "Напоминаю о письме ниже - актуально ли это еще?"},
	{Label: "Meeting recap", Description: "Итоги встречи", Keywords: []string{"recap", "итоги"}, Snippet: "Спасибо за встречу! Коротко фиксирую договоренности:"},
	{Label: "Thanks", Description: "Благодарность", Keywords: []string{"спасибо"}, Snippet: "Большое спасибо за помощь!"},
	{Label: "Sign-off", Description: "Подпись", Keywords: []string{"bye", "подпись"}, Snippet: "С уважением,\n"},
	{Label: "Out of office", Description: "Автоответ об отпуске", Keywords: []string{"ooo", "отпуск"}, Snippet: "Я в отпуске и отвечу после возвращения."},
}
