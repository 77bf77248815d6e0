package content

import (
	"context"
	"fmt"
	"strings"

	flaperrors "flap/internal/errors"
	"flap/internal/llm"
	"flap/internal/logging"
)

// ToolSubmitContent is the single tool offered during negotiation.
const ToolSubmitContent = "submit_content"

// ExhaustionPolicy decides what happens when the model never produces a valid
// submission within the attempt budget.
type ExhaustionPolicy string

const (
	// PolicyThrow fails the generation; the orchestrator falls back.
	PolicyThrow ExhaustionPolicy = "throw"
	// PolicyUseLast force-fits the model's last submission onto the board.
	PolicyUseLast ExhaustionPolicy = "use-last"
)

// DefaultMaxAttempts bounds the negotiation loop.
const DefaultMaxAttempts = 3

// NegotiationResult is the outcome of one negotiation.
type NegotiationResult struct {
	Text     string
	Attempts int

	// Direct means the model answered in plain text without calling the
	// tool; no negotiation occurred and Attempts is zero.
	Direct bool

	// Accepted means a submission passed validation.
	Accepted bool

	// Exhausted means the attempt budget ran out.
	Exhausted bool

	// ForceAccepted means the last submission was truncated into shape under
	// the use-last policy.
	ForceAccepted bool
}

// Negotiator runs the bounded propose/validate/feedback loop with a provider.
// Each model turn costs one attempt, whether the turn carried a valid
// submission, an invalid one, or a call to a tool we never offered.
type Negotiator struct {
	maxAttempts int
	policy      ExhaustionPolicy
	logger      logging.Logger
}

func NewNegotiator(maxAttempts int, policy ExhaustionPolicy) *Negotiator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if policy == "" {
		policy = PolicyThrow
	}
	return &Negotiator{
		maxAttempts: maxAttempts,
		policy:      policy,
		logger:      logging.NewComponentLogger("toolloop"),
	}
}

var submitTool = llm.ToolDefinition{
	Name:        ToolSubmitContent,
	Description: "Submit the final board text. At most 5 lines of at most 21 characters each, using only characters the split-flap board can show.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "The exact text to show, newline-separated lines.",
			},
		},
		"required": []string{"text"},
	},
}

// Negotiate drives the loop. Provider errors abort immediately so the caller
// can make its failover decision; validation rejections are fed back to the
// model instead.
func (n *Negotiator) Negotiate(ctx context.Context, client llm.Client, req llm.CompletionRequest) (*NegotiationResult, error) {
	messages := append([]llm.Message(nil), req.Messages...)
	lastSubmission := ""

	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		resp, err := client.Complete(ctx, llm.CompletionRequest{
			Messages:    messages,
			Tools:       []llm.ToolDefinition{submitTool},
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			n.logger.Debug("model answered directly without the tool")
			return &NegotiationResult{
				Text:     strings.TrimSpace(resp.Content),
				Attempts: 0,
				Direct:   true,
			}, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			if call.Name != ToolSubmitContent {
				n.logger.Warn("attempt %d: model called unknown tool %q", attempt, call.Name)
				results = append(results, llm.ToolResult{
					ToolCallID: call.ID,
					Content:    fmt.Sprintf("unknown tool %q; only %s is available", call.Name, ToolSubmitContent),
					IsError:    true,
				})
				continue
			}

			text, _ := call.Arguments["text"].(string)
			lastSubmission = text
			normalized, verr := NormalizeText(text)
			if verr != nil {
				n.logger.Info("attempt %d: submission rejected: %v", attempt, verr)
				results = append(results, llm.ToolResult{
					ToolCallID: call.ID,
					Content:    "rejected: " + verr.Error() + "; fix the text and submit again",
					IsError:    true,
				})
				continue
			}

			return &NegotiationResult{
				Text:     strings.ToUpper(normalized),
				Attempts: attempt,
				Accepted: true,
			}, nil
		}

		messages = append(messages, llm.Message{Role: "tool", ToolResults: results})
	}

	if n.policy == PolicyUseLast {
		forced := TruncateToLimits(lastSubmission)
		n.logger.Warn("negotiation exhausted after %d attempts, force-accepting truncated submission", n.maxAttempts)
		return &NegotiationResult{
			Text:          forced,
			Attempts:      n.maxAttempts,
			Exhausted:     true,
			ForceAccepted: true,
		}, nil
	}
	return nil, flaperrors.NewPermanentError(nil,
		fmt.Sprintf("tool negotiation exhausted after %d attempts without a valid submission", n.maxAttempts))
}
