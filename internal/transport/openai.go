package transport

import (
	"context"
	"fmt"

	"wumen-backend/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient 对接 OpenAI 兼容接口的客户端。
// 返回整段回答，分块交给流式引擎切
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(baseURL, apiKey, modelName string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
	}
}

func (c *OpenAIClient) SendTurn(ctx context.Context, turns []model.ChatTurn) (*model.TurnResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    t.Role,
			Content: t.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if len(resp.Choices) == 0 {
		return &model.TurnResult{}, nil
	}

	return &model.TurnResult{Answer: resp.Choices[0].Message.Content}, nil
}
