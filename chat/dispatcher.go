package chat

import (
	"context"
	"errors"
	"fmt"

	"fynex/broker"
	"fynex/completion"
	"fynex/pkg/reqctx"
	"fynex/rag"

	"go.uber.org/zap"
)

type State int

const (
	StreamingInitial State = iota
	Dispatching
	AwaitingResult
	StreamingFinal
	Done
)

func (s State) String() string {
	switch s {
	case StreamingInitial:
		return "streaming_initial"
	case Dispatching:
		return "dispatching"
	case AwaitingResult:
		return "awaiting_result"
	case StreamingFinal:
		return "streaming_final"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	apologyGeneric   = "Sorry, I ran into a problem while preparing that answer. Please try again."
	apologyResearch  = "Sorry, I couldn't tell what to look up. Could you rephrase the question?"
	apologyNoToken   = "I need access to your Kite account to read your portfolio. Please log in with Kite Connect and ask again."
	apologyPortfolio = "Sorry, I couldn't fetch your portfolio from Kite right now. Please try again in a moment."
)

type Researcher interface {
	Research(ctx context.Context, rawQuery string) (*rag.ResearchResult, error)
}

type PortfolioReader interface {
	Portfolio(ctx context.Context, accessToken string) (*broker.PortfolioSummary, error)
}

// Turn is one incoming chat request.
type Turn struct {
	Messages    []completion.Message
	AccessToken string
}

// TurnResult describes what a turn did.
type TurnResult struct {
	States        []State
	Tool          string
	CorrelationID string
	FollowUp      bool
	Emitted       bool
}

type Dispatcher struct {
	llm       completion.Client
	composer  *Composer
	research  Researcher
	portfolio PortfolioReader
	system    string
	logger    *zap.Logger
}

func NewDispatcher(llm completion.Client, research Researcher, portfolio PortfolioReader, system string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		llm:       llm,
		composer:  NewComposer(llm, system, logger),
		research:  research,
		portfolio: portfolio,
		system:    system,
		logger:    logger,
	}
}

// Run executes one turn and writes answer text through emit as it arrives.
// An error is returned only when nothing has been written yet or the caller
// went away; later failures are reported to the caller as a single apology.
func (d *Dispatcher) Run(ctx context.Context, turn Turn, emit func(string) error) (*TurnResult, error) {
	res := &TurnResult{}
	logger := reqctx.Logger(ctx, d.logger)

	write := func(text string) error {
		if err := emit(text); err != nil {
			return err
		}
		res.Emitted = true
		return nil
	}
	enter := func(s State) {
		res.States = append(res.States, s)
		logger.Debug("chat turn state", zap.Stringer("state", s))
	}

	enter(StreamingInitial)
	var (
		call    *completion.ToolCall
		sinkErr error
	)
	err := d.llm.Stream(ctx, &completion.Request{
		System:   d.system,
		Messages: turn.Messages,
		Tools:    ToolSpecs(),
	}, func(ev completion.Event) error {
		if ev.ToolCall != nil {
			call = ev.ToolCall
			return completion.ErrStop
		}
		if ev.Text == "" {
			return nil
		}
		if err := write(ev.Text); err != nil {
			sinkErr = err
			return completion.ErrStop
		}
		return nil
	})
	switch {
	case sinkErr != nil:
		return res, sinkErr
	case err != nil && ctx.Err() != nil:
		return res, ctx.Err()
	case err != nil && !res.Emitted:
		return res, fmt.Errorf("initial completion failed: %w", err)
	case err != nil:
		logger.Error("initial completion failed mid-stream", zap.Error(err))
		enter(Done)
		return res, write("\n\n" + apologyGeneric)
	}

	if call == nil {
		enter(Done)
		return res, nil
	}

	enter(Dispatching)
	inv := ParseInvocation(call)
	res.Tool = inv.ToolName()
	logger.Info("tool call received", zap.String("tool", res.Tool), zap.String("call_id", inv.CallID()))

	enter(AwaitingResult)
	var result string
	switch inv := inv.(type) {
	case ResearchCall:
		out, err := d.research.Research(ctx, inv.Query)
		switch {
		case errors.Is(err, rag.ErrEmptyQuery):
			enter(Done)
			return res, write(apologyResearch)
		case err != nil && ctx.Err() != nil:
			return res, ctx.Err()
		case err != nil:
			logger.Error("research failed", zap.Error(err))
			enter(Done)
			return res, write(apologyGeneric)
		}
		res.CorrelationID = out.CorrelationID
		result = out.ToolResult()

	case PortfolioCall:
		summary, err := d.portfolio.Portfolio(ctx, turn.AccessToken)
		switch {
		case errors.Is(err, broker.ErrMissingToken):
			enter(Done)
			return res, write(apologyNoToken)
		case err != nil && ctx.Err() != nil:
			return res, ctx.Err()
		case err != nil:
			logger.Warn("portfolio lookup failed", zap.Error(err))
			enter(Done)
			return res, write(apologyPortfolio)
		}
		result = broker.FormatForLLM(summary)

	case UnknownCall:
		logger.Warn("ignoring unknown tool call", zap.String("tool", inv.Name))
		enter(Done)
		return res, nil
	}

	enter(StreamingFinal)
	res.FollowUp = true
	err = d.composer.Compose(ctx, turn.Messages, call, result, write)
	switch {
	case errors.Is(err, errSink):
		return res, err
	case err != nil && ctx.Err() != nil:
		return res, ctx.Err()
	case err != nil:
		logger.Error("follow-up completion failed", zap.Error(err))
		enter(Done)
		return res, write(apologyGeneric)
	}

	enter(Done)
	return res, nil
}
