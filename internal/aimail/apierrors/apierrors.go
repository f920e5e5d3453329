// Пакет содержит определения ошибок, используемых в приложении aimail для обработки ситуаций, возникающих при работе с черновиками, вложениями, редактором и внешними сервисами. Каждая ошибка имеет код, статус HTTP и описание, что позволяет удобно обрабатывать исключения и предоставлять информативные сообщения пользователю.
//
// Основные возможности:
//   - Определение типов ошибок черновиков, вложений, редактора, AI и валидации.
//   - Предоставление кодов ошибок, соответствующих кодам HTTP статусов.
//   - Включение русскоязычных сообщений для отображения пользователю.
//   - Функция для форматирования сообщений об ошибках с использованием аргументов.
package apierrors

import (
	"fmt"
	"net/http"
	"strings"
)

type DefinedError struct {
	Code       int    `json:"code"`
	StatusCode int    `json:"-"`
	Err        string `json:"error"`
	RuErr      string `json:"ru_error,omitempty"`
}

func (e DefinedError) Error() string {
	return e.Err
}

const (
	AssetMaxSizeMB = 50
)

var (
	// 1*** - draft errors
	ErrDraftNotFound     = DefinedError{Code: 1001, StatusCode: http.StatusNotFound, Err: "draft not found", RuErr: "Черновик не найден"}
	ErrDraftBadRequest   = DefinedError{Code: 1002, StatusCode: http.StatusBadRequest, Err: "bad request", RuErr: "Некорректный запрос"}
	ErrDraftValidate     = DefinedError{Code: 1003, StatusCode: http.StatusBadRequest, Err: "validation error", RuErr: "Введены некорректные данные"}
	ErrDraftBodyTooLarge = DefinedError{Code: 1004, StatusCode: http.StatusRequestEntityTooLarge, Err: "draft body exceeds the allowed size", RuErr: "Тело черновика превышает допустимый размер"}

	// 2*** - asset errors
	ErrAssetNotFound        = DefinedError{Code: 2001, StatusCode: http.StatusNotFound, Err: "asset not found", RuErr: "Вложение не найдено"}
	ErrAssetTooLarge        = DefinedError{Code: 2002, StatusCode: http.StatusRequestEntityTooLarge, Err: "uploaded file exceeds the " + fmt.Sprint(AssetMaxSizeMB) + "MB size limit", RuErr: "Загруженный файл превышает допустимый размер " + fmt.Sprint(AssetMaxSizeMB) + " МБ"}
	ErrAssetUnsupportedType = DefinedError{Code: 2003, StatusCode: http.StatusUnsupportedMediaType, Err: "unsupported asset file type", RuErr: "Данный тип файла не поддерживается"}
	ErrAssetUploadFailed    = DefinedError{Code: 2004, StatusCode: http.StatusBadGateway, Err: "asset upload failed", RuErr: "Не удалось загрузить вложение"}

	// 3*** - editor errors
	ErrEditorNotFound   = DefinedError{Code: 3001, StatusCode: http.StatusNotFound, Err: "editor session not found", RuErr: "Сессия редактора не найдена"}
	ErrEditorBadContent = DefinedError{Code: 3002, StatusCode: http.StatusBadRequest, Err: "content cannot be parsed", RuErr: "Не удалось разобрать переданный контент"}
	ErrEditorBadKey     = DefinedError{Code: 3003, StatusCode: http.StatusBadRequest, Err: "invalid node key", RuErr: "Указан неверный ключ ноды"}

	// 4*** - AI errors
	ErrAIUnavailable = DefinedError{Code: 4001, StatusCode: http.StatusBadGateway, Err: "AI service unavailable", RuErr: "Сервис генерации текста временно недоступен"}
	ErrAIEmptyPrompt = DefinedError{Code: 4002, StatusCode: http.StatusBadRequest, Err: "prompt is empty", RuErr: "Попытка отправить пустой запрос"}
	ErrAIDisabled    = DefinedError{Code: 4003, StatusCode: http.StatusForbidden, Err: "AI features are disabled", RuErr: "Функции генерации текста отключены администратором"}

	// 5*** - validation and other errors
	ErrGeneric          = DefinedError{Code: 5000, StatusCode: http.StatusBadRequest, Err: "Something went wrong. Please try again later or contact the support team.", RuErr: "Что-то пошло не так. Повторите попытку позже или обратитесь в службу поддержки"}
	ErrInvalidEmail     = DefinedError{Code: 5001, StatusCode: http.StatusBadRequest, Err: "invalid email %s", RuErr: "Указан некорректный email"}
	ErrInvalidID        = DefinedError{Code: 5002, StatusCode: http.StatusBadRequest, Err: "invalid ID", RuErr: "Указан неверный ID"}
	ErrLimitTooHigh     = DefinedError{Code: 5003, StatusCode: http.StatusBadRequest, Err: "limit must be less than 100", RuErr: "Запрашиваемый список должен состоять не более чем из 100 элементов"}
	ErrDemo             = DefinedError{Code: 5004, StatusCode: http.StatusPaymentRequired, Err: "forbidden action in demo mode", RuErr: "Данное действие недоступно в демо-режиме"}
	ErrEntityTooLarge   = DefinedError{Code: 5005, StatusCode: http.StatusRequestEntityTooLarge, Err: "size exceeds the allowed limit", RuErr: "Размер файла превышает допустимый"}
	ErrBodyNotValidJSON = DefinedError{Code: 5006, StatusCode: http.StatusBadRequest, Err: "body is not valid JSON", RuErr: "Тело запроса не является корректным JSON"}
)

func (e DefinedError) WithFormattedMessage(args ...interface{}) DefinedError {
	if len(args) > 0 {
		e.Err = fmt.Sprintf(e.Err, args...)
		e.RuErr = fmt.Sprintf(e.RuErr, args...)
	} else {
		e.Err = strings.Replace(e.Err, "%s", "", -1)
		e.RuErr = strings.Replace(e.RuErr, "%s", "", -1)
	}
	return e
}
