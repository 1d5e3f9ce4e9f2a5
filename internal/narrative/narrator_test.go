package narrative_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/uidpulse/internal/ai"
	"github.com/KaramelBytes/uidpulse/internal/analytics"
	"github.com/KaramelBytes/uidpulse/internal/dataset"
	"github.com/KaramelBytes/uidpulse/internal/logging"
	"github.com/KaramelBytes/uidpulse/internal/metrics"
	"github.com/KaramelBytes/uidpulse/internal/narrative"
)

type fakeRuntime struct {
	mu    sync.Mutex
	reqs  []ai.GenerateRequest
	reply string
	err   error
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: f.reply}}}}, nil
}

func (f *fakeRuntime) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.reqs[len(f.reqs)-1].Messages
	return msgs[len(msgs)-1].Content
}

func recs(n int) []analytics.Recommendation {
	out := make([]analytics.Recommendation, n)
	for i := range out {
		out[i] = analytics.Recommendation{
			State: "Goa", District: "District " + string(rune('A'+i)),
			Issue: "High Enrolment Load (Avg 1500/month)", Action: analytics.ActionMobileEnrolment, Priority: analytics.PriorityHigh,
		}
	}
	return out
}

func newNarrator(rt ai.Runtime, m *metrics.Metrics) *narrative.Narrator {
	return narrative.New(rt, narrative.Options{Model: "test-model", Logger: logging.Discard(), Metrics: m, Timeout: time.Second})
}

func TestNoRuntimeYieldsPlaceholder(t *testing.T) {
	m := metrics.New()
	n := newNarrator(nil, m)
	assert.False(t, n.Enabled())

	note := n.ExplainKPIs(context.Background(), analytics.KPIs{TotalEnrolments: 10}, "All")
	assert.Equal(t, narrative.Unavailable, note.Text)
	assert.Equal(t, narrative.StatusDisabled, note.Status)
	assert.NotEmpty(t, note.RequestID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NarrativeCalls.WithLabelValues("kpis", "disabled")))
}

func TestExplainKPIsPrompt(t *testing.T) {
	rt := &fakeRuntime{reply: "  Maintenance mode.  "}
	note := newNarrator(rt, nil).ExplainKPIs(context.Background(), analytics.KPIs{
		TotalEnrolments: 355, TotalDemographicUpdates: 40, TotalBiometricUpdates: 600, UpdateRatio: 1.8,
	}, "All")

	assert.Equal(t, "Maintenance mode.", note.Text)
	assert.Equal(t, narrative.StatusOK, note.Status)
	assert.Equal(t, "test-model", rt.reqs[0].Model)
	prompt := rt.lastPrompt()
	assert.Contains(t, prompt, "Region: All India")
	assert.Contains(t, prompt, "Total enrolments: 355")
	assert.Contains(t, prompt, "Update to enrolment ratio: 1.80")
	assert.Equal(t, "system", rt.reqs[0].Messages[0].Role)
}

func TestAnalyzeTrendsSendsCSV(t *testing.T) {
	rt := &fakeRuntime{reply: "Primary driver: school admissions"}
	tr := analytics.Trend{
		Kind:      dataset.Enrolment,
		Frequency: analytics.FreqMonth,
		Measures:  []string{"age_0_5"},
		Points: []analytics.TrendPoint{
			{Period: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), Values: []int64{160}, Total: 160},
			{Period: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Values: []int64{195}, Total: 195},
		},
	}
	note := newNarrator(rt, nil).AnalyzeTrends(context.Background(), tr)
	assert.Equal(t, narrative.StatusOK, note.Status)
	prompt := rt.lastPrompt()
	assert.Contains(t, prompt, "date,age_0_5,total\n")
	assert.Contains(t, prompt, "2024-02-29,195,195")
}

func TestPromptPayloadIsTruncated(t *testing.T) {
	rt := &fakeRuntime{reply: "ok"}
	n := narrative.New(rt, narrative.Options{PromptTokens: 20, Logger: logging.Discard()})
	note := n.RecommendPolicy(context.Background(), recs(3))
	require.Equal(t, narrative.StatusOK, note.Status)
	assert.NotContains(t, rt.lastPrompt(), "District C")
}

func TestRecommendPolicy(t *testing.T) {
	rt := &fakeRuntime{reply: "Deploy vans."}
	n := newNarrator(rt, nil)

	green := n.RecommendPolicy(context.Background(), nil)
	assert.Equal(t, narrative.StatusGreen, green.Text)
	assert.Empty(t, rt.reqs, "no runtime call without recommendations")

	note := n.RecommendPolicy(context.Background(), recs(7))
	assert.Equal(t, "Deploy vans.", note.Text)
	prompt := rt.lastPrompt()
	assert.Contains(t, prompt, "District E")
	assert.NotContains(t, prompt, "District F", "only the top five are sent")
}

func TestRuntimeErrorBecomesPlaceholder(t *testing.T) {
	m := metrics.New()
	rt := &fakeRuntime{err: errors.New("boom")}
	note := newNarrator(rt, m).ExplainKPIs(context.Background(), analytics.KPIs{}, "Goa")
	assert.Equal(t, narrative.StatusError, note.Status)
	assert.True(t, strings.HasPrefix(note.Text, "error generating narrative: "))
	assert.Contains(t, note.Text, "boom")
	assert.Equal(t, "Goa", note.Region)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NarrativeCalls.WithLabelValues("kpis", "error")))

	rt.err, rt.reply = nil, "   "
	assert.Contains(t, newNarrator(rt, nil).ExplainKPIs(context.Background(), analytics.KPIs{}, "Goa").Text, "empty response")
}

func TestCancelledContextDoesNotCallRuntime(t *testing.T) {
	rt := &fakeRuntime{reply: "ok"}
	n := narrative.New(rt, narrative.Options{RatePerMin: 1, Logger: logging.Discard()})
	require.Equal(t, narrative.StatusOK, n.ExplainKPIs(context.Background(), analytics.KPIs{}, "All").Status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	note := n.ExplainKPIs(ctx, analytics.KPIs{}, "All")
	assert.Equal(t, narrative.StatusError, note.Status)
	assert.Len(t, rt.reqs, 1)
}

func TestParseTopic(t *testing.T) {
	for in, want := range map[string]narrative.Topic{"KPI": narrative.TopicKPIs, "trend": narrative.TopicTrends, "recommendations": narrative.TopicPolicy} {
		got, err := narrative.ParseTopic(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := narrative.ParseTopic("weather")
	assert.Error(t, err)
}
