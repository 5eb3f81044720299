// Package summarize turns trade data into natural-language briefs via the
// generation backend. It owns the prompt contracts for the three horizons;
// an empty generation result is an error, never an empty brief.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/trade-pulse/internal/resilience"
	"github.com/sells-group/trade-pulse/pkg/anthropic"
)

// ErrNoContent is returned when the generation backend produces no usable text.
var ErrNoContent = eris.New("summarize: no content generated")

// Summarizer generates briefs for the three aggregation horizons.
type Summarizer interface {
	Daily(ctx context.Context, tradeDate time.Time, tradeDigest string) (string, error)
	Weekly(ctx context.Context, weekStart, weekEnd time.Time, dailyTexts []string) (string, error)
	Monthly(ctx context.Context, monthStart, monthEnd time.Time, weeklyTexts []string) (string, error)
}

// Options configures the generator.
type Options struct {
	Model             string
	MaxTokens         int64
	RequestsPerMinute int
}

// Generator implements Summarizer on top of the Anthropic client.
type Generator struct {
	client  anthropic.Client
	opts    Options
	limiter *rate.Limiter
}

// New creates a Generator.
func New(client anthropic.Client, opts Options) *Generator {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1024
	}
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	return &Generator{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
	}
}

const dailyPrompt = `You are an elite trading coach. Review the following trade log for %s.
Produce a tight, stylish markdown brief (<220 words) with these sections:
## Pulse Check - 2 bullets on win/loss + risk-reward
## Mistakes to Fix - 2 bullets
## Focus & Mindset - 2 bullets
## Next Session - EXACTLY three numbered action items

Keep sentences crisp and punchy. When judging PnL, account for any fees/commissions present so net results reflect costs.

Trade log:
%s`

const weeklyPrompt = `Summarize the following daily trading reports for %s to %s.
Keep it under 180 words with markdown sections:
## Weekly Pulse (wins/losses + momentum) - 2 bullets
## Recurring Mistakes - 2 bullets
## Bright Spots - 2 bullets
## Focus for Next Week - 3 bullets

Daily reports:
%s`

const monthlyPrompt = `Create a high-level trading review for %s (%s to %s).
Keep it under 220 words with markdown sections:
## Macro Pulse - 2 bullets
## Strategy Insights - 2 bullets
## Risk & Psychology - 2 bullets
## Goals for Next Month - 3 bullets

Weekly reports:
%s`

func (g *Generator) Daily(ctx context.Context, tradeDate time.Time, tradeDigest string) (string, error) {
	prompt := fmt.Sprintf(dailyPrompt, tradeDate.Format("2006-01-02"), tradeDigest)
	return g.generate(ctx, "daily", prompt)
}

func (g *Generator) Weekly(ctx context.Context, weekStart, weekEnd time.Time, dailyTexts []string) (string, error) {
	prompt := fmt.Sprintf(weeklyPrompt,
		weekStart.Format("2006-01-02"),
		weekEnd.Format("2006-01-02"),
		strings.Join(dailyTexts, "\n\n"),
	)
	return g.generate(ctx, "weekly", prompt)
}

func (g *Generator) Monthly(ctx context.Context, monthStart, monthEnd time.Time, weeklyTexts []string) (string, error) {
	prompt := fmt.Sprintf(monthlyPrompt,
		monthStart.Format("January 2006"),
		monthStart.Format("2006-01-02"),
		monthEnd.Format("2006-01-02"),
		strings.Join(weeklyTexts, "\n\n"),
	)
	return g.generate(ctx, "monthly", prompt)
}

func (g *Generator) generate(ctx context.Context, stage, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "summarize: rate limit wait")
	}

	zap.L().Info("calling generation backend",
		zap.String("stage", stage),
		zap.String("model", g.opts.Model),
		zap.Int("prompt_chars", len(prompt)),
	)

	resp, err := resilience.DoVal(ctx, resilience.DefaultRetryConfig(),
		func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return g.client.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     g.opts.Model,
				MaxTokens: g.opts.MaxTokens,
				Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
			})
		})
	if err != nil {
		return "", eris.Wrapf(err, "summarize: %s generation", stage)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", eris.Wrapf(ErrNoContent, "%s generation", stage)
	}
	resp.Usage.LogUsage(g.opts.Model, stage)
	return text, nil
}
