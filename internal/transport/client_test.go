package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wumen-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.TurnResult
	}{
		{
			name: "top level chunks",
			raw:  `{"chunks":["a","b"]}`,
			want: model.TurnResult{Chunks: []string{"a", "b"}},
		},
		{
			name: "top level answer",
			raw:  `{"answer":"阴阳是..."}`,
			want: model.TurnResult{Answer: "阴阳是..."},
		},
		{
			name: "wrapped in data",
			raw:  `{"data":{"answer":"在data里"}}`,
			want: model.TurnResult{Answer: "在data里"},
		},
		{
			name: "wrapped in result",
			raw:  `{"result":{"chunks":["x"]}}`,
			want: model.TurnResult{Chunks: []string{"x"}},
		},
		{
			name: "content as bare string",
			raw:  `{"content":"直接就是回答"}`,
			want: model.TurnResult{Answer: "直接就是回答"},
		},
		{
			name: "content as nested object",
			raw:  `{"content":{"answer":"套一层"}}`,
			want: model.TurnResult{Answer: "套一层"},
		},
		{
			name: "double nesting",
			raw:  `{"data":{"result":{"answer":"两层"}}}`,
			want: model.TurnResult{Answer: "两层"},
		},
		{
			name: "nothing recognizable means empty result",
			raw:  `{"ok":true}`,
			want: model.TurnResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalize([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestNormalizeInvalidJSON(t *testing.T) {
	_, err := normalize([]byte("not json"))
	assert.Error(t, err)
}

func TestHTTPClientSendTurn(t *testing.T) {
	var received turnPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"answer":"收到"}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, 5*time.Second)

	result, err := client.SendTurn(context.Background(), []model.ChatTurn{
		{Role: model.RoleUser, Content: "你好"},
	})
	require.NoError(t, err)
	assert.Equal(t, "收到", result.Answer)

	require.Len(t, received.Messages, 1)
	assert.Equal(t, model.RoleUser, received.Messages[0].Role)
}

func TestHTTPClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, 5*time.Second)

	_, err := client.SendTurn(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestHTTPClientTimeoutIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, 20*time.Millisecond)

	_, err := client.SendTurn(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUpstream)
}
