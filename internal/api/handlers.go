package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/delaycast/internal/forecast"
	"github.com/sells-group/delaycast/internal/model"
	"github.com/sells-group/delaycast/internal/store"
)

// Handler serves forecast API requests.
type Handler struct {
	engine       *forecast.Engine
	priors       forecast.PriorSource
	thresholdMin int
	log          *zap.Logger
}

// NewHandler creates the API handler set.
func NewHandler(engine *forecast.Engine, priors forecast.PriorSource, thresholdMin int) *Handler {
	if thresholdMin <= 0 {
		thresholdMin = model.Threshold15
	}
	return &Handler{
		engine:       engine,
		priors:       priors,
		thresholdMin: thresholdMin,
		log:          zap.L().Named("api-handler"),
	}
}

// GetForecast handles GET /api/v1/forecast/{carrier}/{flight}/{date}.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	carrier := strings.ToUpper(chi.URLParam(r, "carrier"))
	flight := chi.URLParam(r, "flight")
	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	f, err := h.engine.Forecast(r.Context(), carrier, flight, date)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "flight not found")
			return
		}
		h.log.Error("forecast failed",
			zap.String("carrier", carrier),
			zap.String("flight", flight),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "forecast failed")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// RoutePriorResponse reports the historical Beta prior for a route.
type RoutePriorResponse struct {
	Carrier string  `json:"carrier"`
	Origin  string  `json:"origin"`
	Dest    string  `json:"dest"`
	Flights int64   `json:"flights"`
	Late    int64   `json:"late"`
	Alpha   float64 `json:"alpha"`
	Beta    float64 `json:"beta"`
	PLate   float64 `json:"p_late"`
}

// GetRoutePrior handles GET /api/v1/routes/{carrier}/{origin}/{dest}/prior.
func (h *Handler) GetRoutePrior(w http.ResponseWriter, r *http.Request) {
	key := model.RouteKey{
		Carrier: strings.ToUpper(chi.URLParam(r, "carrier")),
		Origin:  strings.ToUpper(chi.URLParam(r, "origin")),
		Dest:    strings.ToUpper(chi.URLParam(r, "dest")),
	}

	counts, err := h.priors.CountsForRoute(r.Context(), key, h.thresholdMin)
	if err != nil {
		h.log.Error("route prior failed", zap.String("route", key.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "route lookup failed")
		return
	}

	alpha := 0.5 + float64(counts.Late)
	beta := 0.5 + float64(counts.Flights-counts.Late)
	writeJSON(w, http.StatusOK, RoutePriorResponse{
		Carrier: key.Carrier,
		Origin:  key.Origin,
		Dest:    key.Dest,
		Flights: counts.Flights,
		Late:    counts.Late,
		Alpha:   alpha,
		Beta:    beta,
		PLate:   alpha / (alpha + beta),
	})
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
