package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"wumen-backend/internal/model"
	"wumen-backend/internal/utils"
)

var ErrUpstream = errors.New("upstream request failed")

// Client 每轮对话向上游发一次请求，拿回分块或整段的回答。
// 调用方不关心上游的返回信封长什么样，这里统一归一化。
type Client interface {
	SendTurn(ctx context.Context, turns []model.ChatTurn) (*model.TurnResult, error)
}

// HTTPClient 对接自建问答服务的客户端
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client:   utils.NewHTTPClient(timeout),
	}
}

type turnPayload struct {
	Messages []model.ChatTurn `json:"messages"`
}

func (c *HTTPClient) SendTurn(ctx context.Context, turns []model.ChatTurn) (*model.TurnResult, error) {
	body, err := json.Marshal(turnPayload{Messages: turns})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstream, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	result, err := normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return result, nil
}

// envelope 上游各版本的返回信封：答案可能在顶层，
// 也可能套在 data / result / content 里
type envelope struct {
	Chunks  []string        `json:"chunks"`
	Answer  string          `json:"answer"`
	Data    json.RawMessage `json:"data"`
	Result  json.RawMessage `json:"result"`
	Content json.RawMessage `json:"content"`
}

// normalize 把任意版本的信封拆成统一的 TurnResult
func normalize(raw []byte) (*model.TurnResult, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	if len(env.Chunks) > 0 || env.Answer != "" {
		return &model.TurnResult{Chunks: env.Chunks, Answer: env.Answer}, nil
	}

	// content 直接是字符串时就是答案本身
	if len(env.Content) > 0 {
		var answer string
		if err := json.Unmarshal(env.Content, &answer); err == nil {
			return &model.TurnResult{Answer: answer}, nil
		}
		return normalize(env.Content)
	}

	for _, nested := range [][]byte{env.Data, env.Result} {
		if len(nested) > 0 {
			return normalize(nested)
		}
	}

	// 没有可识别的字段：当作空回答，由上层走默认文案
	return &model.TurnResult{}, nil
}
