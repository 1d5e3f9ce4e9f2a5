package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/KaramelBytes/uidpulse/internal/analytics"
	"github.com/KaramelBytes/uidpulse/internal/dataset"
	"github.com/KaramelBytes/uidpulse/internal/narrative"
)

type healthResponse struct {
	Status   string    `json:"status"`
	Records  int       `json:"records"`
	States   int       `json:"states"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Snapshot()
	status := "ok"
	if snap.Set.Len() == 0 {
		status = "empty"
	}
	render.JSON(w, r, healthResponse{Status: status, Records: snap.Set.Len(), States: len(snap.Set.States()), LoadedAt: snap.LoadedAt})
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reload(r.Context()); err != nil {
		_ = render.Render(w, r, internalError(err))
		return
	}
	s.health(w, r)
}

func (s *Server) region(r *http.Request) string {
	if v := r.URL.Query().Get("region"); v != "" {
		return v
	}
	if s.opt.DefaultRegion != "" {
		return s.opt.DefaultRegion
	}
	return dataset.AllRegions
}

func kindParam(r *http.Request) (dataset.Kind, error) {
	return dataset.ParseKind(chi.URLParam(r, "kind"))
}

func (s *Server) freqParam(r *http.Request) (analytics.Frequency, error) {
	v := r.URL.Query().Get("freq")
	if v == "" {
		return s.svc.Engine().Config().Frequency, nil
	}
	return analytics.ParseFrequency(v)
}

func (s *Server) periodsParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("periods")
	if v == "" {
		return s.svc.Engine().Config().ForecastPeriods, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("periods must be a non-negative integer, got %q", v)
	}
	return n, nil
}

func (s *Server) kpis(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.svc.KPIs(s.region(r)))
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	k, err := kindParam(r)
	if err != nil {
		_ = render.Render(w, r, invalidParam(err))
		return
	}
	level, err := analytics.ParseLevel(r.URL.Query().Get("level"))
	if err != nil {
		_ = render.Render(w, r, invalidParam(err))
		return
	}
	render.JSON(w, r, s.svc.Summary(s.region(r), k, level))
}

func (s *Server) trend(w http.ResponseWriter, r *http.Request) {
	k, err := kindParam(r)
	if err != nil {
		_ = render.Render(w, r, invalidParam(err))
		return
	}
	freq, err := s.freqParam(r)
	if err != nil {
		_ = render.Render(w, r, invalidParam(err))
		return
	}
	render.JSON(w, r, s.svc.Trend(s.region(r), k, freq))
}

func (s *Server) ratios(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, nonNil(s.svc.Ratios(s.region(r))))
}

func (s *Server) correlation(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.svc.Correlation(s.region(r)))
}

func (s *Server) outliers(w http.ResponseWriter, r *http.Request) {
	k, err := kindParam(r)
	if err != nil {
		_ = render.Render(w, r, invalidParam(err))
		return
	}
	render.JSON(w, r, s.svc.Outliers(s.region(r), k))
}

func (s *Server) forecast(w http.ResponseWriter, r *http.Request) {
	k, err := kindParam(r)
	if err != nil {
		_ = render.Render(w, r, invalidParam(err))
		return
	}
	periods, err := s.periodsParam(r)
	if err != nil {
		_ = render.Render(w, r, invalidParam(err))
		return
	}
	render.JSON(w, r, s.svc.Forecast(s.region(r), k, periods))
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, nonNil(s.svc.Recommendations(s.region(r))))
}

func (s *Server) coverage(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, nonNil(s.svc.Coverage(s.region(r))))
}

func (s *Server) bundle(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.svc.Bundle(s.region(r)))
}

func (s *Server) narrative(w http.ResponseWriter, r *http.Request) {
	topic, err := narrative.ParseTopic(chi.URLParam(r, "topic"))
	if err != nil {
		_ = render.Render(w, r, invalidParam(err))
		return
	}
	region := s.region(r)
	ctx := r.Context()
	var note narrative.Note
	switch topic {
	case narrative.TopicKPIs:
		note = s.narrator.ExplainKPIs(ctx, s.svc.KPIs(region), region)
	case narrative.TopicTrends:
		k := dataset.Enrolment
		if v := r.URL.Query().Get("kind"); v != "" {
			if k, err = dataset.ParseKind(v); err != nil {
				_ = render.Render(w, r, invalidParam(err))
				return
			}
		}
		freq, err := s.freqParam(r)
		if err != nil {
			_ = render.Render(w, r, invalidParam(err))
			return
		}
		note = s.narrator.AnalyzeTrends(ctx, s.svc.Trend(region, k, freq))
		note.Region = region
	case narrative.TopicPolicy:
		note = s.narrator.RecommendPolicy(ctx, s.svc.Recommendations(region))
		note.Region = region
	}
	render.JSON(w, r, note)
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
