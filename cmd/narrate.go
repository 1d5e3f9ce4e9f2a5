package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/uidpulse/internal/ai"
	"github.com/KaramelBytes/uidpulse/internal/dataset"
	"github.com/KaramelBytes/uidpulse/internal/metrics"
	"github.com/KaramelBytes/uidpulse/internal/narrative"
	"github.com/KaramelBytes/uidpulse/internal/report"
)

var (
	narrateKind  string
	narrateModel string
)

// newNarrator builds a Narrator from the config. An empty ai_provider yields placeholder notes.
func newNarrator(m *metrics.Metrics) (*narrative.Narrator, error) {
	c, err := validConfig()
	if err != nil {
		return nil, err
	}
	var rt ai.Runtime
	if c.AIProvider != "" {
		if rt, err = ai.NewRuntime(c.AIProvider, c.Runtime()); err != nil {
			return nil, err
		}
	}
	model := c.AIModel
	if narrateModel != "" {
		model = narrateModel
	}
	if model == "" && c.AIProvider == ai.ProviderGemini {
		model = ai.DefaultGeminiModel
	}
	return narrative.New(rt, narrative.Options{
		Model:        model,
		MaxTokens:    c.MaxTokens,
		Temperature:  c.Temperature,
		RatePerMin:   c.NarrativeRatePerMin,
		Timeout:      time.Duration(c.HTTPTimeoutSec) * time.Second,
		PromptTokens: c.NarrativePromptTokens,
		Logger:       logger,
		Metrics:      m,
	}), nil
}

var narrateCmd = &cobra.Command{
	Use:       "narrate <kpis|trends|policy>",
	Short:     "Ask the configured AI provider to explain results",
	Long:      "Ask the configured AI provider (ai_provider: openrouter, ollama or gemini) to explain the KPIs, a trend or the recommendations of the selected region. Without a provider a placeholder note is printed.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(narrative.TopicKPIs), string(narrative.TopicTrends), string(narrative.TopicPolicy)},
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, err := narrative.ParseTopic(args[0])
		if err != nil {
			return err
		}
		m := metrics.New()
		svc, err := newService(cmd.Context(), m)
		if err != nil {
			return err
		}
		n, err := newNarrator(m)
		if err != nil {
			return err
		}
		reg := region()
		var note narrative.Note
		switch topic {
		case narrative.TopicKPIs:
			note = n.ExplainKPIs(cmd.Context(), svc.KPIs(reg), reg)
		case narrative.TopicTrends:
			k, err := dataset.ParseKind(narrateKind)
			if err != nil {
				return err
			}
			note = n.AnalyzeTrends(cmd.Context(), svc.Trend(reg, k, svc.Engine().Config().Frequency))
			note.Region = reg
		case narrative.TopicPolicy:
			note = n.RecommendPolicy(cmd.Context(), svc.Recommendations(reg))
			note.Region = reg
		}
		f, err := outputFormat()
		if err != nil {
			return err
		}
		if f == report.FormatJSON {
			return report.WriteJSON(cmd.OutOrStdout(), note)
		}
		fmt.Fprintln(cmd.OutOrStdout(), note.Text)
		if note.Status == narrative.StatusError {
			return fmt.Errorf("narrative %s failed (request %s)", topic, note.RequestID)
		}
		return nil
	},
}

func init() {
	narrateCmd.Flags().StringVar(&narrateKind, "kind", "enrolment", "dataset for the trends topic")
	narrateCmd.Flags().StringVar(&narrateModel, "model", "", "model name (overrides ai_model)")
	rootCmd.AddCommand(narrateCmd)
}
