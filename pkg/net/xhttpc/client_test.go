package xhttpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		BaseURL:       server.URL,
		Timeout:       5 * time.Second,
		AllowInsecure: true,
	})
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	t.Run("MissingBaseURL", func(t *testing.T) {
		_, err := New(Config{})

		assert.ErrorIs(t, err, ErrMissingBaseURL)
	})

	t.Run("InvalidBaseURL", func(t *testing.T) {
		_, err := New(Config{BaseURL: "not-a-url"})

		assert.ErrorIs(t, err, ErrInvalidBaseURL)
	})

	t.Run("InsecureRejectedByDefault", func(t *testing.T) {
		_, err := New(Config{BaseURL: "http://api.example.com"})

		assert.ErrorIs(t, err, ErrInsecureBaseURL)
	})

	t.Run("InsecureAllowedExplicitly", func(t *testing.T) {
		client, err := New(Config{BaseURL: "http://api.example.com", AllowInsecure: true})

		require.NoError(t, err)
		assert.NotNil(t, client.HTTPClient())
	})

	t.Run("TrailingSlashTrimmed", func(t *testing.T) {
		client, err := New(Config{BaseURL: "https://api.example.com/", AllowInsecure: true})

		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com/v1", client.buildURL("/v1"))
	})
}

func TestClient_Get(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/v1/profile", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			_, _ = w.Write([]byte(`{"name":"alice"}`))
		})

		var resp struct {
			Name string `json:"name"`
		}
		err := client.Get(context.Background(), "/v1/profile", nil, &resp)

		require.NoError(t, err)
		assert.Equal(t, "alice", resp.Name)
	})

	t.Run("CustomHeaderForwarded", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "key-1", r.Header.Get("X-Api-Key"))
			w.WriteHeader(http.StatusNoContent)
		})

		err := client.Get(context.Background(), "/v1/ping", map[string]string{"X-Api-Key": "key-1"}, nil)

		assert.NoError(t, err)
	})

	t.Run("EmptyBodySkipsUnmarshal", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		var resp struct{ Name string }
		err := client.Get(context.Background(), "/v1/empty", nil, &resp)

		assert.NoError(t, err)
	})
}

func TestClient_Post(t *testing.T) {
	t.Run("JSONBody", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body := make([]byte, r.ContentLength)
			_, _ = r.Body.Read(body)
			assert.JSONEq(t, `{"user":"bob"}`, string(body))
			_, _ = w.Write([]byte(`{"id":7}`))
		})

		var resp struct {
			ID int `json:"id"`
		}
		err := client.Post(context.Background(), "/v1/register",
			nil, map[string]string{"user": "bob"}, &resp)

		require.NoError(t, err)
		assert.Equal(t, 7, resp.ID)
	})

	t.Run("StringBodyKeepsContentType", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusOK)
		})

		err := client.Post(context.Background(), "/v1/form",
			map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
			"a=1&b=2", nil)

		assert.NoError(t, err)
	})
}

func TestClient_RequestWithAuth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})

	headers := map[string]string{"X-Trace": "t-1"}
	err := client.RequestWithAuth(context.Background(), http.MethodGet, "/v1/me", "token-1", headers, nil, nil)

	require.NoError(t, err)
	// 调用方的原始 map 不被修改
	assert.NotContains(t, headers, "Authorization")
}

func TestClient_StatusError(t *testing.T) {
	t.Run("CarriesStatusAndBody", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":1001,"message":"bad payload"}`))
		})

		err := client.Get(context.Background(), "/v1/thing", nil, nil)

		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusBadRequest, se.HTTPStatusCode())
		assert.JSONEq(t, `{"code":1001,"message":"bad payload"}`, string(se.ResponseBody()))
		assert.Equal(t, 1001, se.Code)
		assert.Equal(t, "bad payload", se.Message)
	})

	t.Run("NonJSONBodyPreserved", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("upstream gone"))
		})

		err := client.Get(context.Background(), "/v1/thing", nil, nil)

		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, []byte("upstream gone"), se.ResponseBody())
		assert.Zero(t, se.Code)
	})

	t.Run("SentinelMapping", func(t *testing.T) {
		for status, sentinel := range map[int]error{
			http.StatusUnauthorized:        ErrUnauthorized,
			http.StatusForbidden:           ErrForbidden,
			http.StatusNotFound:            ErrNotFound,
			http.StatusInternalServerError: ErrServerError,
			http.StatusBadGateway:          ErrServerError,
		} {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
			})

			err := client.Get(context.Background(), "/v1/thing", nil, nil)

			assert.ErrorIs(t, err, sentinel, "status %d", status)
		}
	})
}

func TestClient_TransportFailureHasNoStatus(t *testing.T) {
	client, err := New(Config{
		BaseURL:       "http://127.0.0.1:1", // 不可达端口
		Timeout:       200 * time.Millisecond,
		AllowInsecure: true,
	})
	require.NoError(t, err)

	gerr := client.Get(context.Background(), "/v1/thing", nil, nil)

	require.Error(t, gerr)
	// 无响应的失败不携带状态码
	var se *StatusError
	assert.False(t, errors.As(gerr, &se))
}

func TestGetJSON(t *testing.T) {
	type profile struct {
		Name string `json:"name"`
	}

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"carol"}`))
	})

	result, err := GetJSON[profile](context.Background(), client, "/v1/profile", nil)

	require.NoError(t, err)
	assert.Equal(t, profile{Name: "carol"}, result)
}

func TestPostJSON(t *testing.T) {
	type created struct {
		ID int `json:"id"`
	}

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":42}`))
	})

	result, err := PostJSON[created](context.Background(), client, "/v1/things", nil, map[string]int{"n": 1})

	require.NoError(t, err)
	assert.Equal(t, 42, result.ID)
}

func TestHandleResponse_TooLarge(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, maxResponseSize+1))
	})

	err := client.Get(context.Background(), "/v1/huge", nil, nil)

	assert.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestIsAbsoluteURL(t *testing.T) {
	assert.True(t, isAbsoluteURL("https://example.com/x"))
	assert.True(t, isAbsoluteURL("HTTP://example.com/x"))
	assert.False(t, isAbsoluteURL("/v1/path"))
	assert.False(t, isAbsoluteURL("ftp://example.com"))
}

func TestSanitizeURL(t *testing.T) {
	assert.Equal(t, "https://a/b", sanitizeURL("https://a/b?key=secret"))
	assert.Equal(t, "https://a/b", sanitizeURL("https://a/b"))
	assert.False(t, strings.Contains(sanitizeURL("https://a/b?x=1&y=2"), "?"))
}
