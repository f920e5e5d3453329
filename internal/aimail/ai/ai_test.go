package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteDisabledWithoutEndpoint(t *testing.T) {
	c := NewClient("", "", "")
	assert.False(t, c.Enabled())

	_, err := c.Rewrite(context.Background(), "короче", "текст")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestRewriteSendsPromptAndReturnsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "сделай вежливее")
		assert.Contains(t, req.Messages[1].Content, "пришлите отчет")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "<p>Будьте добры, пришлите отчет.</p>"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", "test-model")
	out, err := c.Rewrite(context.Background(), "сделай вежливее", "пришлите отчет")
	require.NoError(t, err)
	assert.Equal(t, "<p>Будьте добры, пришлите отчет.</p>", out)
}

func TestRewriteRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "<p>ok</p>"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model")
	c.cl.RetryWaitMin = 0
	c.cl.RetryWaitMax = 0

	out, err := c.Rewrite(context.Background(), "короче", "текст")
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", out)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestRewriteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model")
	_, err := c.Rewrite(context.Background(), "короче", "текст")
	assert.Error(t, err)
}
