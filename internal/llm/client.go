package llm

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"travelpilot/internal/schema"
)

// Request 一次流式补全请求。
// Tools 为空时请求不携带任何工具能力。
type Request struct {
	Model       string
	Messages    []schema.Message
	Temperature float64
	Tools       []schema.ToolSpec
}

// ToolCallDelta is one streamed fragment of a tool call, tagged with the
// provider's slot index. ID and Name usually arrive only on the first fragment.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Delta 流式响应中的一个增量
type Delta struct {
	Content   string
	ToolCalls []ToolCallDelta
}

// ChatModel is the streaming chat-completion boundary. A transport failure
// ends the sequence with a (Delta{}, err) pair; breaking out of the range
// loop releases the underlying stream.
type ChatModel interface {
	Stream(ctx context.Context, req Request) iter.Seq2[Delta, error]
}

// Client LLM 客户端（OpenAI 兼容接口）
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
	http    *http.Client
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithTimeout bounds every request, including the time spent reading the stream.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient 使用自定义 http.Client（测试时指向 httptest）
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient 创建 LLM 客户端
func NewClient(apiKey, baseURL, model string, opts ...ClientOption) *Client {
	c := &Client{
		model:   model,
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(c.timeout),
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	if c.http != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(c.http))
	}
	c.client = openai.NewClient(clientOpts...)

	slog.Info("Initialized LLM client",
		slog.String("model", model),
		slog.String("baseURL", baseURL),
		slog.Duration("timeout", c.timeout),
	)

	return c
}

// Model returns the default model identifier.
func (c *Client) Model() string { return c.model }

// Stream 发起流式补全，逐个产出增量
func (c *Client) Stream(ctx context.Context, req Request) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		model := req.Model
		if model == "" {
			model = c.model
		}

		params := openai.ChatCompletionNewParams{
			Model:       model,
			Messages:    ConvertMessages(req.Messages),
			Temperature: openai.Float(req.Temperature),
		}
		if len(req.Tools) > 0 {
			params.Tools = ConvertTools(req.Tools)
		}

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			d := chunk.Choices[0].Delta
			delta := Delta{Content: d.Content}
			for _, tc := range d.ToolCalls {
				delta.ToolCalls = append(delta.ToolCalls, ToolCallDelta{
					Index:     int(tc.Index),
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
			}
			if delta.Content == "" && len(delta.ToolCalls) == 0 {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			yield(Delta{}, fmt.Errorf("chat completion stream failed: %w", err))
		}
	}
}

// ConvertMessages 转换消息格式
func ConvertMessages(messages []schema.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case schema.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))

		case schema.RoleUser:
			result = append(result, openai.UserMessage(msg.Content))

		case schema.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				result = append(result, openai.AssistantMessage(msg.Content))
				continue
			}

			toolCalls := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					},
				})
			}

			assistantParam := openai.ChatCompletionAssistantMessageParam{
				ToolCalls: toolCalls,
			}
			if msg.Content != "" {
				assistantParam.Content.OfString = param.NewOpt(msg.Content)
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &assistantParam,
			})

		case schema.RoleTool:
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}

	return result
}

// ConvertTools 转换工具格式
func ConvertTools(specs []schema.ToolSpec) []openai.ChatCompletionToolUnionParam {
	result := make([]openai.ChatCompletionToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		result = append(result, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        spec.Name,
			Description: openai.String(spec.Description),
			Parameters:  openai.FunctionParameters(spec.Parameters),
		}))
	}
	return result
}

// Collect drains a delta sequence and returns the concatenated text.
func Collect(seq iter.Seq2[Delta, error]) (string, error) {
	var out []byte
	for d, err := range seq {
		if err != nil {
			return string(out), err
		}
		out = append(out, d.Content...)
	}
	return string(out), nil
}

// TextOnly adapts a delta sequence into plain text fragments, dropping
// tool-call fragments and empty deltas.
func TextOnly(seq iter.Seq2[Delta, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for d, err := range seq {
			if err != nil {
				yield("", err)
				return
			}
			if d.Content == "" {
				continue
			}
			if !yield(d.Content, nil) {
				return
			}
		}
	}
}
