// Package chat runs one chat turn: it streams the model's first answer,
// dispatches at most one tool call and streams the follow-up answer.
package chat

import (
	"strings"

	"fynex/completion"
)

const (
	ToolResearch  = "search_financial_web"
	ToolPortfolio = "get_portfolio_summary"
)

// Invocation is a parsed tool call. The set of implementations is closed.
type Invocation interface {
	CallID() string
	ToolName() string
	invocation()
}

// ResearchCall asks for web research on Query.
type ResearchCall struct {
	ID    string
	Query string
}

// PortfolioCall asks for the user's broker holdings and positions.
type PortfolioCall struct {
	ID string
}

// UnknownCall is any tool name the dispatcher does not serve.
type UnknownCall struct {
	ID   string
	Name string
}

func (c ResearchCall) CallID() string   { return c.ID }
func (c ResearchCall) ToolName() string { return ToolResearch }
func (ResearchCall) invocation()        {}

func (c PortfolioCall) CallID() string   { return c.ID }
func (c PortfolioCall) ToolName() string { return ToolPortfolio }
func (PortfolioCall) invocation()        {}

func (c UnknownCall) CallID() string   { return c.ID }
func (c UnknownCall) ToolName() string { return c.Name }
func (UnknownCall) invocation()        {}

// ParseInvocation maps a raw tool call onto its typed variant.
func ParseInvocation(call *completion.ToolCall) Invocation {
	switch call.Name {
	case ToolResearch:
		q, _ := call.Arguments["query"].(string)
		return ResearchCall{ID: call.ID, Query: strings.TrimSpace(q)}
	case ToolPortfolio:
		return PortfolioCall{ID: call.ID}
	default:
		return UnknownCall{ID: call.ID, Name: call.Name}
	}
}

// ToolSpecs returns the tool declarations sent with the initial completion.
func ToolSpecs() []completion.ToolSpec {
	return []completion.ToolSpec{
		{
			Name: ToolResearch,
			Description: "Search the web for current financial information, market news, company fundamentals " +
				"or recent events. Use it when the answer needs data newer than your training.",
			Parameters: map[string]completion.ParamSpec{
				"query": {Type: "string", Description: "The search query, e.g. \"reliance industries q2 results\""},
			},
			Required: []string{"query"},
		},
		{
			Name:        ToolPortfolio,
			Description: "Fetch the user's current holdings and open positions from their Kite Connect account.",
		},
	}
}
