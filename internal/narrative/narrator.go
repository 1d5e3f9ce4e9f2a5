// Package narrative turns analytics results into short natural-language notes using an
// optional text-generation runtime. Failures never propagate: callers always get text.
package narrative

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/KaramelBytes/uidpulse/internal/ai"
	"github.com/KaramelBytes/uidpulse/internal/analytics"
	"github.com/KaramelBytes/uidpulse/internal/logging"
	"github.com/KaramelBytes/uidpulse/internal/metrics"
	"github.com/KaramelBytes/uidpulse/internal/report"
	"github.com/KaramelBytes/uidpulse/internal/utils"
)

// Topic names one kind of note.
type Topic string

const (
	TopicKPIs   Topic = "kpis"
	TopicTrends Topic = "trends"
	TopicPolicy Topic = "policy"
)

// ParseTopic accepts the topic names plus a few aliases.
func ParseTopic(s string) (Topic, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kpis", "kpi":
		return TopicKPIs, nil
	case "trends", "trend":
		return TopicTrends, nil
	case "policy", "recommendations":
		return TopicPolicy, nil
	}
	return "", fmt.Errorf("unknown narrative topic %q (want kpis, trends or policy)", s)
}

// Note statuses.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusDisabled = "disabled"
	StatusSkipped  = "skipped"
)

const (
	// Unavailable is returned when no runtime is configured.
	Unavailable = "narrative unavailable: no AI provider configured"
	// StatusGreen is returned for a policy note when nothing needs intervention.
	StatusGreen = "System status green: no immediate critical interventions required. Maintain current operational cadence."
	// MaxPolicyItems caps the recommendations sent in a policy prompt.
	MaxPolicyItems = 5
)

// Note is one generated (or placeholder) narrative.
type Note struct {
	Topic     Topic  `json:"topic"`
	Region    string `json:"region,omitempty"`
	Text      string `json:"text"`
	Status    string `json:"status"`
	Model     string `json:"model,omitempty"`
	RequestID string `json:"request_id"`
}

// Options configures a Narrator. Zero values pick the defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// RatePerMin throttles runtime calls. Zero or less means unthrottled.
	RatePerMin float64
	Timeout    time.Duration
	// PromptTokens caps the CSV payload embedded in a prompt.
	PromptTokens int
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Narrator produces notes for KPIs, trends and recommendations.
type Narrator struct {
	runtime      ai.Runtime
	model        string
	maxTokens    int
	temperature  float64
	limiter      *rate.Limiter
	timeout      time.Duration
	promptTokens int
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// New returns a Narrator. A nil runtime yields placeholder notes.
func New(rt ai.Runtime, opt Options) *Narrator {
	if opt.Timeout <= 0 {
		opt.Timeout = 60 * time.Second
	}
	if opt.PromptTokens <= 0 {
		opt.PromptTokens = 2000
	}
	if opt.MaxTokens <= 0 {
		opt.MaxTokens = 600
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opt.RatePerMin > 0 {
		lim = rate.NewLimiter(rate.Limit(opt.RatePerMin/60), 1)
	}
	return &Narrator{
		runtime:      rt,
		model:        opt.Model,
		maxTokens:    opt.MaxTokens,
		temperature:  opt.Temperature,
		limiter:      lim,
		timeout:      opt.Timeout,
		promptTokens: opt.PromptTokens,
		logger:       opt.Logger.With(slog.String("component", "narrative")),
		metrics:      opt.Metrics,
	}
}

// Enabled reports whether a runtime is configured.
func (n *Narrator) Enabled() bool { return n != nil && n.runtime != nil }

// ExplainKPIs interprets the headline totals of region.
func (n *Narrator) ExplainKPIs(ctx context.Context, k analytics.KPIs, region string) Note {
	return n.generate(ctx, TopicKPIs, region, kpiPrompt(k, region))
}

// AnalyzeTrends looks for seasonality and anomalies in a trend series.
func (n *Narrator) AnalyzeTrends(ctx context.Context, tr analytics.Trend) Note {
	csv, err := tableCSV(report.TrendTable(tr), n.promptTokens)
	if err != nil {
		return n.failed(TopicTrends, "", uuid.NewString(), err)
	}
	return n.generate(ctx, TopicTrends, "", trendPrompt(tr, csv))
}

// RecommendPolicy drafts a decision note for the top recommendations.
// With nothing to act on it returns StatusGreen without calling the runtime.
func (n *Narrator) RecommendPolicy(ctx context.Context, recs []analytics.Recommendation) Note {
	if len(recs) == 0 {
		n.metrics.Narrative(string(TopicPolicy), StatusSkipped)
		return Note{Topic: TopicPolicy, Text: StatusGreen, Status: StatusSkipped, RequestID: uuid.NewString()}
	}
	if len(recs) > MaxPolicyItems {
		recs = recs[:MaxPolicyItems]
	}
	csv, err := tableCSV(report.RecommendationTable(recs), n.promptTokens)
	if err != nil {
		return n.failed(TopicPolicy, "", uuid.NewString(), err)
	}
	return n.generate(ctx, TopicPolicy, "", policyPrompt(csv))
}

func (n *Narrator) generate(ctx context.Context, topic Topic, region string, msgs []ai.Message) Note {
	id := uuid.NewString()
	if !n.Enabled() {
		if n != nil {
			n.metrics.Narrative(string(topic), StatusDisabled)
		}
		return Note{Topic: topic, Region: region, Text: Unavailable, Status: StatusDisabled, RequestID: id}
	}
	ctx = logging.WithRequestID(ctx, id)
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.limiter.Wait(ctx); err != nil {
		return n.failed(topic, region, id, fmt.Errorf("rate limit wait: %w", err))
	}
	start := time.Now()
	resp, err := n.runtime.Generate(ctx, ai.GenerateRequest{
		Model:       n.model,
		Messages:    msgs,
		MaxTokens:   n.maxTokens,
		Temperature: n.temperature,
	})
	if err == nil && strings.TrimSpace(resp.Text()) == "" {
		err = errors.New("empty response")
	}
	if err != nil {
		return n.failed(topic, region, id, err)
	}
	n.metrics.Narrative(string(topic), StatusOK)
	n.logger.InfoContext(ctx, "narrative generated",
		slog.String("topic", string(topic)),
		slog.String("provider_request_id", resp.RequestID),
		slog.Int("total_tokens", resp.Usage.TotalTokens),
		slog.Duration("elapsed", time.Since(start)))
	return Note{Topic: topic, Region: region, Text: strings.TrimSpace(resp.Text()), Status: StatusOK, Model: n.model, RequestID: id}
}

func (n *Narrator) failed(topic Topic, region, id string, err error) Note {
	n.metrics.Narrative(string(topic), StatusError)
	n.logger.Warn("narrative failed", slog.String("topic", string(topic)), slog.String("request_id", id), slog.String("error", err.Error()))
	return Note{Topic: topic, Region: region, Text: "error generating narrative: " + err.Error(), Status: StatusError, Model: n.model, RequestID: id}
}

// tableCSV renders t as CSV and truncates it to limit tokens on a row boundary.
func tableCSV(t report.Table, limit int) (string, error) {
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, t); err != nil {
		return "", err
	}
	return utils.TruncateToTokenLimit(buf.String(), limit), nil
}
