package tools

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/samber/lo"

	"travelpilot/internal/schema"
)

// Visibility 决定工具输出是否直接展示给用户
type Visibility int

const (
	// Visible tools stream their own output to the user.
	Visible Visibility = iota
	// Silent tools only feed their output back to the model.
	Silent
)

func (v Visibility) String() string {
	if v == Silent {
		return "silent"
	}
	return "visible"
}

// Output is a lazy, finite, forward-only sequence of text fragments whose
// concatenation is the tool's full answer. A non-nil error ends it.
type Output = iter.Seq2[string, error]

// Tool 工具接口
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Visibility() Visibility
	// Label is the short "now doing X" text shown before visible output.
	Label() string
	// Execute validates and decodes args, then returns the output sequence.
	// Nothing external happens until the sequence is ranged over.
	Execute(ctx context.Context, args map[string]any) (Output, error)
}

// Spec 转换为 provider 使用的工具描述
func Spec(t Tool) schema.ToolSpec {
	return schema.ToolSpec{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// Registry 工具注册表，创建后不可变，保持注册顺序
type Registry struct {
	order []string
	tools map[string]Tool
}

var ErrDuplicateTool = errors.New("duplicate tool name")

// NewRegistry 创建工具注册表
func NewRegistry(list ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(list))}
	for _, t := range list {
		if _, ok := r.tools[t.Name()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r, nil
}

// Get 获取工具
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List 按注册顺序列出所有工具
func (r *Registry) List() []Tool {
	return lo.Map(r.order, func(name string, _ int) Tool { return r.tools[name] })
}

// Names 按注册顺序列出工具名
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Specs returns the provider schemas of every tool whose name is not in
// exclude, in registration order.
func (r *Registry) Specs(exclude map[string]struct{}) []schema.ToolSpec {
	kept := lo.Filter(r.List(), func(t Tool, _ int) bool {
		_, skip := exclude[t.Name()]
		return !skip
	})
	return lo.Map(kept, func(t Tool, _ int) schema.ToolSpec { return Spec(t) })
}

// Drain collects an output sequence into one string.
func Drain(out Output) (string, error) {
	var sb strings.Builder
	for chunk, err := range out {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}
