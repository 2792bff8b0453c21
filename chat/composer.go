package chat

import (
	"context"
	"errors"
	"fmt"

	"fynex/completion"

	"go.uber.org/zap"
)

// Composer makes the single follow-up completion of a turn that had a tool call.
type Composer struct {
	llm    completion.Client
	system string
	logger *zap.Logger
}

func NewComposer(llm completion.Client, system string, logger *zap.Logger) *Composer {
	return &Composer{llm: llm, system: system, logger: logger}
}

// Compose replays the tool call and its result after history and streams the
// answer through emit. Tools are not offered again, so any tool call in the
// follow-up stream is ignored.
func (c *Composer) Compose(ctx context.Context, history []completion.Message, call *completion.ToolCall, result string, emit func(string) error) error {
	messages := make([]completion.Message, 0, len(history)+2)
	messages = append(messages, history...)
	messages = append(messages,
		completion.Message{Role: completion.RoleAssistant, ToolCall: call},
		completion.Message{Role: completion.RoleUser, ToolResult: &completion.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: result,
		}},
	)

	var sinkErr error
	err := c.llm.Stream(ctx, &completion.Request{System: c.system, Messages: messages}, func(ev completion.Event) error {
		if ev.Text == "" {
			return nil
		}
		if err := emit(ev.Text); err != nil {
			sinkErr = err
			return completion.ErrStop
		}
		return nil
	})
	if sinkErr != nil {
		return fmt.Errorf("%w: %w", errSink, sinkErr)
	}
	if err != nil {
		return fmt.Errorf("follow-up completion failed: %w", err)
	}
	return nil
}

var errSink = errors.New("writing to caller failed")
