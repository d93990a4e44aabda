package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"travelpilot/internal/schema"
)

//
// ---------------------------------------------------------
// Turn Logger
// ---------------------------------------------------------
//

// TurnLogger 记录一次对话轮次（turn）中的所有交互：
// 每轮 LLM 请求、模型响应以及工具执行结果，每个 turn 一个文件。
type TurnLogger struct {
	logDir   string     // 日志目录 (~/.travelpilot/log)
	logFile  *os.File   // 当前 turn 的日志文件
	logIndex int        // 当前文件内的条目计数
	turns    int        // 已开始的 turn 数，用于区分同一秒内的文件
	mu       sync.Mutex // 保护以上字段
}

// DefaultDir returns ~/.travelpilot/log.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user home directory: %w", err)
	}
	return filepath.Join(home, ".travelpilot", "log"), nil
}

// NewTurnLogger 创建日志管理器；dir 为空时使用 DefaultDir。
func NewTurnLogger(dir string) (*TurnLogger, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create log directory: %w", err)
	}

	return &TurnLogger{logDir: dir}, nil
}

//
// ---------------------------------------------------------
// Log File Control
// ---------------------------------------------------------
//

// StartTurn closes the previous turn's file and opens a new one with a
// header line.
func (l *TurnLogger) StartTurn(userMessage string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}

	l.turns++
	now := time.Now()
	name := fmt.Sprintf("turn_%s_%03d.log", now.Format("20060102_150405"), l.turns)

	file, err := os.Create(filepath.Join(l.logDir, name))
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	l.logFile = file
	l.logIndex = 0

	header := fmt.Sprintf("%s\nTravel Assistant Turn - %s\nUser: %s\n%s\n",
		strings.Repeat("=", 80),
		now.Format("2006-01-02 15:04:05"),
		userMessage,
		strings.Repeat("=", 80),
	)

	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed writing header: %w", err)
	}
	return nil
}

// safeJSON 格式化 JSON，失败时返回描述错误的 JSON
func safeJSON(v any) []byte {
	j, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Appendf(nil, `{"error": "json marshal failed: %v"}`, err)
	}
	return j
}

func (l *TurnLogger) writeLog(logType, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return fmt.Errorf("log file not initialized (StartTurn not called?)")
	}

	l.logIndex++

	entry := fmt.Sprintf(
		"\n%s\n[%d] %s\nTimestamp: %s\n%s\n%s\n",
		strings.Repeat("-", 80),
		l.logIndex,
		logType,
		time.Now().Format("2006-01-02 15:04:05.000"),
		strings.Repeat("-", 80),
		content,
	)

	if _, err := l.logFile.WriteString(entry); err != nil {
		return fmt.Errorf("write log failed: %w", err)
	}
	return l.logFile.Sync()
}

//
// ---------------------------------------------------------
// Entries
// ---------------------------------------------------------
//

func dumpCalls(calls []schema.ToolCall) []map[string]any {
	out := make([]map[string]any, len(calls))
	for i, tc := range calls {
		out[i] = map[string]any{
			"id":        tc.ID,
			"name":      tc.Name,
			"arguments": tc.Arguments,
		}
	}
	return out
}

// LogRequest 记录一次 LLM 请求：消息列表、本轮提供的工具名以及 token 估算。
func (l *TurnLogger) LogRequest(round int, messages []schema.Message, offered []schema.ToolSpec, tokens int) error {
	msgList := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		m := map[string]any{
			"role":    msg.Role,
			"content": msg.Content,
		}
		if msg.ToolCallID != "" {
			m["tool_call_id"] = msg.ToolCallID
		}
		if len(msg.ToolCalls) > 0 {
			m["tool_calls"] = dumpCalls(msg.ToolCalls)
		}
		msgList = append(msgList, m)
	}

	names := make([]string, len(offered))
	for i, t := range offered {
		names[i] = t.Name
	}

	req := map[string]any{
		"round":            round,
		"messages":         msgList,
		"tools":            names,
		"estimated_tokens": tokens,
	}
	return l.writeLog("REQUEST", "LLM Request:\n\n"+string(safeJSON(req)))
}

// LogResponse 记录模型在一轮中返回的文本和工具调用。
func (l *TurnLogger) LogResponse(round int, content string, calls []schema.ToolCall, suppressed bool) error {
	resp := map[string]any{
		"round":   round,
		"content": content,
	}
	if suppressed {
		resp["suppressed"] = true
	}
	if len(calls) > 0 {
		resp["tool_calls"] = dumpCalls(calls)
	}
	return l.writeLog("RESPONSE", "LLM Response:\n\n"+string(safeJSON(resp)))
}

// LogToolResult 记录工具执行结果；err 非空时记录错误而非内容。
func (l *TurnLogger) LogToolResult(toolName string, arguments map[string]any, result string, err error) error {
	data := map[string]any{
		"tool_name": toolName,
		"arguments": arguments,
		"success":   err == nil,
	}
	if err == nil {
		data["result"] = result
	} else {
		data["error"] = err.Error()
	}
	return l.writeLog("TOOL_RESULT", "Tool Execution:\n\n"+string(safeJSON(data)))
}

// Path 返回当前日志文件路径
func (l *TurnLogger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return ""
	}
	return l.logFile.Name()
}

// Close 关闭日志文件
func (l *TurnLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		err := l.logFile.Close()
		l.logFile = nil
		return err
	}
	return nil
}
