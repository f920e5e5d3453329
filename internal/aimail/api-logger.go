// Утилиты обработки ошибок API пакета aimail.
// Возвращают ошибки с корректными HTTP-статусами и логируют их с контекстом запроса.
//
// Основные возможности:
//   - Единый формат ответа об ошибке.
//   - Логирование ошибок API с контекстом (метод, URL, вызывающий файл).
//   - Поддержка типизированных ошибок с кодами статусов.
package aimail

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/apierrors"

	"github.com/labstack/echo/v4"
)

// Возврат ошибки 400 с универсальным сообщением
func EError(c echo.Context, err error) error {
	if customErr, ok := err.(apierrors.DefinedError); ok {
		return EErrorDefined(c, customErr)
	}
	if err == nil {
		slog.Error("Unknown API error",
			"method", c.Request().Method,
			"url", c.Request().URL,
			getCallerFile(),
		)
	} else {
		slog.Error("API error",
			"err", err,
			"method", c.Request().Method,
			"url", c.Request().URL,
			getCallerFile(),
		)
	}
	return EErrorDefined(c, apierrors.ErrGeneric)
}

// Возврат ошибки <status> с сообщением ошибки
func EErrorMsgStatus(c echo.Context, err error, status int) error {
	if status == http.StatusRequestEntityTooLarge {
		return EErrorDefined(c, apierrors.ErrEntityTooLarge)
	}

	if err == nil {
		if status != http.StatusForbidden {
			slog.Error("Unknown API error",
				"method", c.Request().Method,
				slog.Int("status", status),
				"url", c.Request().URL,
				getCallerFile(),
			)
		}
		er := apierrors.ErrGeneric
		er.StatusCode = status
		return EErrorDefined(c, er)
	} else {
		// Ignore log 404 error
		if status != http.StatusNotFound {
			slog.Error("API error",
				"err", err,
				"method", c.Request().Method,
				slog.Int("status", status),
				"url", c.Request().URL,
				getCallerFile(),
			)
		}
		er := apierrors.ErrGeneric
		er.StatusCode = status
		er.Err = err.Error()
		return EErrorDefined(c, er)
	}
}

// Возврат ошибки 400 с сообщением ошибки
func EErrorMsg(c echo.Context, err error) error {
	if err == nil {
		slog.Error("Unknown API error",
			"method", c.Request().Method,
			"url", c.Request().URL,
			getCallerFile(),
		)
		return EErrorDefined(c, apierrors.ErrGeneric)
	}
	slog.Error("API error",
		"err", err,
		"method", c.Request().Method,
		"url", c.Request().URL,
		getCallerFile(),
	)
	er := apierrors.ErrGeneric
	er.Err = err.Error()
	return EErrorDefined(c, er)
}

// EErrorDefined возвращает JSON-ответ с кодом статуса и сообщением об ошибке.
// Если код статуса не определен, используется 400 Bad Request.
func EErrorDefined(c echo.Context, err apierrors.DefinedError) error {
	// If unknown code use 400 Bad Request
	if http.StatusText(err.StatusCode) == "" {
		err.StatusCode = http.StatusBadRequest
	}
	return c.JSON(err.StatusCode, err)
}

// getCallerFile возвращает атрибут лога с именем файла и номером строки,
// из которых была вызвана функция.
func getCallerFile() slog.Attr {
	_, path, no, ok := runtime.Caller(2)
	if !ok {
		return slog.Attr{}
	}
	_, file := filepath.Split(path)
	return slog.String("caller", fmt.Sprintf("%s:%d", file, no))
}
