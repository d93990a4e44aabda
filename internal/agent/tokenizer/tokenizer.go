package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"travelpilot/internal/schema"
)

// 每条消息的元数据开销（role、分隔符等）
const perMessageOverhead = 4

var loadEncoding = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.GetEncoding("cl100k_base")
})

// EstimateTokens 估算消息列表的 token 数量。
// 优先使用 tiktoken-go 的 cl100k_base 编码，不可用时回退到字符长度估算。
func EstimateTokens(messages []schema.Message) int {
	enc, err := loadEncoding()
	if err != nil {
		return EstimateTokensFallback(messages)
	}

	total := 0
	for _, m := range messages {
		total += countTokens(enc, m.Content)
		for _, tc := range m.ToolCalls {
			total += countTokens(enc, tc.Name)
			total += countTokens(enc, tc.Arguments)
		}
		total += perMessageOverhead
	}
	return total
}

func countTokens(enc *tiktoken.Tiktoken, text string) int {
	if text == "" {
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}

// EstimateTokensFallback 按 2.5 个字符约等于 1 个 token 估算。
func EstimateTokensFallback(messages []schema.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
		for _, tc := range m.ToolCalls {
			total += len(tc.Name) + len(tc.Arguments)
		}
	}
	return int(float64(total) / 2.5)
}
