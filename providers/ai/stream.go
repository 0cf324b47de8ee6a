package ai

import (
	"iter"
	"strings"
)

// StreamEventType identifies the payload of a StreamEvent.
type StreamEventType string

const (
	StreamEventContent  StreamEventType = "content"
	StreamEventToolCall StreamEventType = "tool_call"
	StreamEventUsage    StreamEventType = "usage"
	StreamEventDone     StreamEventType = "done"
)

// ToolCallDelta is a fragment of a streamed tool call. ID and Name arrive on
// the first fragment of an Index; later fragments only extend Arguments.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// StreamEvent carries exactly one kind of delta, selected by Type.
type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	Content      string          `json:"content,omitempty"`
	ToolCall     *ToolCallDelta  `json:"tool_call,omitempty"`
	Usage        *Usage          `json:"usage,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

// ChatStream is a single-use sequence of deltas. It must be consumed, with
// Iter or Collect, so the backend can release the underlying response body.
type ChatStream struct {
	iterator iter.Seq2[StreamEvent, error]
}

func NewChatStream(iterator iter.Seq2[StreamEvent, error]) *ChatStream {
	return &ChatStream{iterator: iterator}
}

// NewSingleEventStream replays a complete response as a stream. It lets
// callers treat non-streaming backends uniformly.
func NewSingleEventStream(response *ChatResponse) *ChatStream {
	return NewChatStream(func(yield func(StreamEvent, error) bool) {
		if response.Content != "" {
			if !yield(StreamEvent{Type: StreamEventContent, Content: response.Content}, nil) {
				return
			}
		}

		for index, call := range response.ToolCalls {
			delta := &ToolCallDelta{
				Index:     index,
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			}
			if !yield(StreamEvent{Type: StreamEventToolCall, ToolCall: delta}, nil) {
				return
			}
		}

		if response.Usage != nil {
			if !yield(StreamEvent{Type: StreamEventUsage, Usage: response.Usage}, nil) {
				return
			}
		}

		yield(StreamEvent{Type: StreamEventDone, FinishReason: response.FinishReason}, nil)
	})
}

// Iter exposes the stream for range-over-func loops:
//
//	for event, err := range stream.Iter() {
//	    if err != nil { ... }
//	    fmt.Print(event.Content)
//	}
func (stream *ChatStream) Iter() iter.Seq2[StreamEvent, error] {
	return stream.iterator
}

// Collect drains the stream into one response. On a mid-stream error the
// partial response is returned together with the error.
func (stream *ChatStream) Collect() (*ChatResponse, error) {
	return collect(stream.iterator, nil)
}

// Tee drains the stream like Collect, calling onEvent for every event first.
func (stream *ChatStream) Tee(onEvent func(StreamEvent)) (*ChatResponse, error) {
	return collect(stream.iterator, onEvent)
}

func collect(events iter.Seq2[StreamEvent, error], onEvent func(StreamEvent)) (*ChatResponse, error) {
	accumulated := &ChatResponse{}
	var content strings.Builder
	var builders []*toolCallBuilder

	finish := func() {
		accumulated.Content = content.String()
		for _, builder := range builders {
			accumulated.ToolCalls = append(accumulated.ToolCalls, builder.build())
		}
	}

	for event, err := range events {
		if err != nil {
			finish()
			return accumulated, err
		}
		if onEvent != nil {
			onEvent(event)
		}

		switch event.Type {
		case StreamEventContent:
			content.WriteString(event.Content)
		case StreamEventToolCall:
			if event.ToolCall != nil {
				builders = accumulateToolCallDelta(builders, event.ToolCall)
			}
		case StreamEventUsage:
			accumulated.Usage = event.Usage
		case StreamEventDone:
			accumulated.FinishReason = event.FinishReason
		}
	}

	finish()
	return accumulated, nil
}

type toolCallBuilder struct {
	id        string
	name      string
	arguments strings.Builder
}

func (builder *toolCallBuilder) build() ToolCall {
	return ToolCall{
		ID:   builder.id,
		Type: "function",
		Function: ToolCallFunction{
			Name:      builder.name,
			Arguments: builder.arguments.String(),
		},
	}
}

// accumulateToolCallDelta grows builders so delta.Index exists, then merges.
// Builders are held by pointer because strings.Builder must not be copied.
func accumulateToolCallDelta(builders []*toolCallBuilder, delta *ToolCallDelta) []*toolCallBuilder {
	for len(builders) <= delta.Index {
		builders = append(builders, &toolCallBuilder{})
	}

	builder := builders[delta.Index]
	if delta.ID != "" {
		builder.id = delta.ID
	}
	if delta.Name != "" {
		builder.name = delta.Name
	}
	builder.arguments.WriteString(delta.Arguments)
	return builders
}
