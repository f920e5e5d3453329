// Пакет ai - клиент внешнего сервиса генерации текста. Отправляет запрос
// на переписывание фрагмента письма и возвращает сгенерированный HTML,
// готовый к прогону через конвейер импорта редактора.
//
// Основные возможности:
//   - Переписывание выделенного текста по инструкции пользователя.
//   - Повторы запросов с выдержкой через retryablehttp.
//   - Отключаемость: пустой endpoint переводит клиент в выключенное состояние.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var ErrDisabled = errors.New("ai client is disabled")

const requestTimeout = 2 * time.Minute

type Client struct {
	cl       *retryablehttp.Client
	endpoint string
	token    string
	model    string
}

// NewClient создает клиента сервиса генерации. Пустой endpoint означает,
// что функции генерации выключены: Enabled вернет false, Rewrite - ErrDisabled.
func NewClient(endpoint string, token string, model string) *Client {
	cl := retryablehttp.NewClient()
	cl.RetryMax = 3
	cl.RetryWaitMin = time.Second * 2
	cl.HTTPClient.Timeout = requestTimeout
	cl.Logger = slog.Default()

	return &Client{
		cl:       cl,
		endpoint: endpoint,
		token:    token,
		model:    model,
	}
}

func (c *Client) Enabled() bool { return c.endpoint != "" }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = "Ты помощник в почтовом редакторе. Перепиши переданный фрагмент письма по инструкции пользователя. Ответ верни простым HTML из абзацев, заголовков и списков, без какого-либо обрамления."

// Rewrite переписывает фрагмент text по инструкции prompt и возвращает
// сгенерированный HTML.
func (c *Client) Rewrite(ctx context.Context, prompt string, text string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Инструкция: %s\n\nФрагмент:\n%s", prompt, text)},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.cl.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ai service returned %d: %s", resp.StatusCode, payload)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("ai service returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
