package indengine

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ta-snapshot/internal/indicator"
	"ta-snapshot/internal/model"
)

// Handler returns the HTTP API:
//
//	GET  /healthz                   service health
//	GET  /summary?inst=&bar=        latest report (format=text for the rendering)
//	GET  /summaries                 every latest report
//	GET  /params, POST /params      read or replace indicator params
//	GET  /metrics                   Prometheus metrics
//
// plus anything added with Mount.
func (svc *Service) Handler() http.Handler {
	return svc.handler(prometheus.DefaultGatherer)
}

func (svc *Service) handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", svc.handleHealth)
	mux.HandleFunc("/summary", svc.handleSummary)
	mux.HandleFunc("/summaries", svc.handleSummaries)
	mux.HandleFunc("/params", svc.handleParams)
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	svc.mu.RLock()
	for pattern, h := range svc.routes {
		mux.Handle(pattern, h)
	}
	svc.mu.RUnlock()
	return mux
}

func (svc *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if svc.health != nil {
		svc.health.ServeHTTP(w, r)
		return
	}
	w.Write([]byte("ok"))
}

func (svc *Service) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	key := model.SeriesKey{InstID: q.Get("inst"), Bar: q.Get("bar")}
	if key.InstID == "" || key.Bar == "" {
		http.Error(w, "inst and bar are required", http.StatusBadRequest)
		return
	}

	report, ok := svc.Latest(key)
	if !ok {
		http.Error(w, "no summary for "+key.String(), http.StatusNotFound)
		return
	}

	if q.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(report.Text))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (svc *Service) handleSummaries(w http.ResponseWriter, r *http.Request) {
	reports := svc.LatestAll()
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Key().String() < reports[j].Key().String()
	})
	writeJSON(w, http.StatusOK, reports)
}

// handleParams serves the current params on GET and replaces them on POST.
// A POST body may be partial; missing fields keep their current values.
func (svc *Service) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, svc.Params())
	case http.MethodPost:
		p := svc.Params()
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := svc.SetParams(p); err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, indicator.ErrInvalidParams) {
				code = http.StatusBadRequest
			}
			http.Error(w, err.Error(), code)
			return
		}
		writeJSON(w, http.StatusOK, p)
	default:
		http.Error(w, "GET or POST only", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
