package llm

import (
	"context"
	"errors"
	"iter"
	"sync"

	"travelpilot/internal/schema"
)

// MockRound is one scripted model response: the deltas to stream, then Err
// (if set) as the terminal transport failure.
type MockRound struct {
	Deltas []Delta
	Err    error
}

// MockModel is a test double for ChatModel. Each Stream call consumes the
// next scripted round; StreamFunc, when set, overrides the script.
type MockModel struct {
	Rounds     []MockRound
	StreamFunc func(ctx context.Context, req Request) iter.Seq2[Delta, error]

	mu       sync.Mutex
	requests []Request
	next     int
}

var ErrScriptExhausted = errors.New("mock model: no scripted round left")

// Stream is lazy like Client.Stream: the request is recorded and a round
// consumed only when the sequence is ranged over.
func (m *MockModel) Stream(ctx context.Context, req Request) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		m.mu.Lock()
		m.requests = append(m.requests, cloneRequest(req))
		if m.StreamFunc != nil {
			m.mu.Unlock()
			for d, err := range m.StreamFunc(ctx, req) {
				if !yield(d, err) {
					return
				}
			}
			return
		}
		var round *MockRound
		if m.next < len(m.Rounds) {
			round = &m.Rounds[m.next]
			m.next++
		}
		m.mu.Unlock()

		if round == nil {
			yield(Delta{}, ErrScriptExhausted)
			return
		}
		for _, d := range round.Deltas {
			if err := ctx.Err(); err != nil {
				yield(Delta{}, err)
				return
			}
			if !yield(d, nil) {
				return
			}
		}
		if round.Err != nil {
			yield(Delta{}, round.Err)
		}
	}
}

// Requests returns copies of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func cloneRequest(req Request) Request {
	req.Messages = append([]schema.Message(nil), req.Messages...)
	req.Tools = append([]schema.ToolSpec(nil), req.Tools...)
	return req
}

// Text is shorthand for a content-only delta.
func Text(s string) Delta { return Delta{Content: s} }

// Call is shorthand for a single tool-call fragment.
func Call(index int, id, name, args string) Delta {
	return Delta{ToolCalls: []ToolCallDelta{{Index: index, ID: id, Name: name, Arguments: args}}}
}
