// internal/forecast/handler.go
//
// HTTP endpoints for forecasts.
//
//	GET    /weatherforecast       list, ordered by date
//	GET    /weatherforecast/{id}  one forecast or 404
//	POST   /weatherforecast       create a random forecast, 201 + Location
//	DELETE /weatherforecast/{id}  204 or 404
//
// The tenant database comes from tenant.Middleware, which must run first.

package forecast

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/tenantpoc/internal/tenant"
)

// BasePath is where Routes is mounted.
const BasePath = "/weatherforecast"

// Handler serves the forecast endpoints.
type Handler struct {
	now  func() time.Time
	intn func(n int) int
}

// NewHandler returns a Handler using the wall clock and math/rand.
func NewHandler() *Handler {
	return &Handler{now: time.Now, intn: rand.IntN}
}

// Routes builds the router mounted at BasePath.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	return r
}

func (h *Handler) repo(w http.ResponseWriter, r *http.Request) *Repository {
	pool := tenant.FromContext(r.Context())
	if pool == nil {
		zap.L().Error("forecast handler without tenant pool")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil
	}
	return NewRepository(pool.DB, pool.Provider)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	repo := h.repo(w, r)
	if repo == nil {
		return
	}
	out, err := repo.List(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	repo := h.repo(w, r)
	if repo == nil {
		return
	}
	f, err := repo.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	repo := h.repo(w, r)
	if repo == nil {
		return
	}
	f := Forecast{
		Date:         h.now(),
		Summary:      Summaries[h.intn(len(Summaries))],
		TemperatureC: MinTempC + h.intn(MaxTempC-MinTempC),
	}
	if err := repo.Create(r.Context(), &f); err != nil {
		serverError(w, r, err)
		return
	}
	w.Header().Set("Location", BasePath+"/"+strconv.FormatInt(f.ID, 10))
	writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	repo := h.repo(w, r)
	if repo == nil {
		return
	}
	err := repo.Delete(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	pool := tenant.FromContext(r.Context())
	zap.L().Error("forecast request failed",
		zap.String("tenant", pool.Tenant.Name()),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}
