package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gedworks/archive-cli/internal/extract"
	"github.com/gedworks/archive-cli/internal/resilience"
	"github.com/gedworks/archive-cli/pkg/anthropic"
)

// assistExcerptChars bounds the excerpt sent to the API per document.
const assistExcerptChars = 1500

const assistSystemPrompt = "You are an expert in document management and document classification. " +
	"You analyze documents and propose precise, professional filing categories."

// Proposal is a category/subcategory pair suggested by the assisted
// classifier, with a short rationale.
type Proposal struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Rationale   string `json:"reason"`
}

// AssistedClassifier proposes novel categories via the Anthropic API when
// the keyword rules come up empty. Every failure mode collapses to a nil
// proposal; the classifier never surfaces an error to its caller.
type AssistedClassifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	limiter   *rate.Limiter
	breaker   *resilience.CircuitBreaker
}

// NewAssistedClassifier wires an Anthropic client with a per-second rate
// limit and a circuit breaker so a misbehaving API degrades the batch to
// rule-only classification instead of stalling it.
func NewAssistedClassifier(client anthropic.Client, model string, maxTokens int64, timeout time.Duration, ratePerSec float64) *AssistedClassifier {
	return &AssistedClassifier{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), 1),
		breaker:   resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
}

// Propose asks the API for a classification of the document. It returns nil
// on any failure: rate-limit wait cancelled, circuit open, transport error,
// timeout, or an unparseable reply.
func (a *AssistedClassifier) Propose(ctx context.Context, text, filename string) *Proposal {
	if a == nil || a.client == nil {
		return nil
	}

	if err := a.limiter.Wait(ctx); err != nil {
		zap.L().Warn("assist rate limit wait aborted", zap.String("file", filename), zap.Error(err))
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	temp := 0.1
	req := anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      assistSystemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildAssistPrompt(text, filename)},
		},
	}

	resp, err := resilience.ExecuteVal(callCtx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		zap.L().Warn("assisted classification unavailable",
			zap.String("file", filename),
			zap.Error(err))
		return nil
	}

	resp.Usage.LogCost(resp.Model, "classify")

	proposal, err := parseProposal(resp.Text())
	if err != nil {
		zap.L().Warn("assisted classification reply unparseable",
			zap.String("file", filename),
			zap.Error(err))
		return nil
	}
	return proposal
}

func buildAssistPrompt(text, filename string) string {
	excerpt := extract.Truncate(text, assistExcerptChars)

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this document and propose a filing classification.\n\n")
	fmt.Fprintf(&b, "File name: %s\n\n", filename)
	fmt.Fprintf(&b, "Content (excerpt):\n--- %s ---\n\n", excerpt)
	b.WriteString("Rules:\n")
	b.WriteString("- The category must be in UPPERCASE\n")
	b.WriteString("- The subcategory must be descriptive\n")
	b.WriteString("- Use professional language, be precise and concise\n\n")
	b.WriteString("Respond ONLY with a JSON object:\n")
	b.WriteString(`{"category": "CATEGORY_NAME_UPPERCASE", "subcategory": "Descriptive_Subcategory", "reason": "One or two sentences explaining the choice."}`)
	return b.String()
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseProposal extracts a Proposal from a model reply, tolerating fenced
// code blocks and surrounding prose around the JSON object.
func parseProposal(raw string) (*Proposal, error) {
	clean := strings.TrimSpace(raw)
	if idx := strings.Index(clean, "```json"); idx >= 0 {
		clean = clean[idx+len("```json"):]
		if end := strings.Index(clean, "```"); end >= 0 {
			clean = clean[:end]
		}
	} else if idx := strings.Index(clean, "```"); idx >= 0 {
		clean = clean[idx+len("```"):]
		if end := strings.Index(clean, "```"); end >= 0 {
			clean = clean[:end]
		}
	}

	match := jsonObjectPattern.FindString(clean)
	if match == "" {
		return nil, eris.New("classify: no JSON object in reply")
	}

	var p Proposal
	if err := json.Unmarshal([]byte(match), &p); err != nil {
		return nil, eris.Wrap(err, "classify: decode proposal")
	}

	p.Category = strings.TrimSpace(p.Category)
	p.Subcategory = strings.TrimSpace(p.Subcategory)
	p.Rationale = strings.TrimSpace(p.Rationale)
	if p.Category == "" {
		return nil, eris.New("classify: proposal missing category")
	}
	if p.Subcategory == "" {
		p.Subcategory = "Divers"
	}
	return &p, nil
}
