// Package taxisim is a local stand-in for the remote matching service. It
// serves the same contract internal/taxiapi speaks so the workflow host can
// run end to end without the real service.
package taxisim

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-share/internal/logging"
	"github.com/example/ride-share/internal/matcher"
	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/observability"
	"github.com/example/ride-share/internal/storage"
	"github.com/example/ride-share/internal/taxiapi"
)

type Server struct {
	Store   storage.OrderStore
	Matcher *matcher.Service
	logger  *slog.Logger
	mux     *mux.Router
}

func NewServer(store storage.OrderStore, logger *slog.Logger) *Server {
	s := &Server{
		Store:   store,
		Matcher: &matcher.Service{Store: store},
		logger:  logging.Component(logger, "taxisim"),
		mux:     mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/orders", s.handleCreate).Methods("POST")
	s.mux.HandleFunc("/orders/{id}", s.handleCancel).Methods("DELETE")
	s.mux.HandleFunc("/matches", s.handleMatches).Methods("GET")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type orderResponse struct {
	ID      string `json:"id"`
	UserID  string `json:"userid"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Type    string `json:"type"`
	Address string `json:"address"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in taxiapi.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	o, err := toOrder(in)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	so, err := s.Store.SaveOrder(r.Context(), o)
	if err != nil {
		s.logger.Error("save order failed", "error", err)
		http.Error(w, "storage error", 500)
		return
	}
	s.refreshGauge(r)
	s.logger.Info("order created", "order_id", so.ID, "userid", in.UserID, "type", in.Type)
	writeJSON(w, http.StatusCreated, orderResponse{
		ID:      string(so.ID),
		UserID:  in.UserID,
		Start:   taxiapi.FormatTime(o.Window.Start),
		End:     taxiapi.FormatTime(o.Window.End),
		Type:    in.Type,
		Address: in.Address,
	})
}

func toOrder(in taxiapi.CreateRequest) (models.Order, error) {
	if in.UserID == "" {
		return models.Order{}, errors.New("userid is required")
	}
	role, ok := models.ParseRole(in.Type)
	if !ok || (in.Type != "0" && in.Type != "1") {
		return models.Order{}, errors.New(`type must be "0" or "1"`)
	}
	start, err := taxiapi.ParseTime(in.Start)
	if err != nil {
		return models.Order{}, errors.New("start must be an ISO 8601 instant")
	}
	end, err := taxiapi.ParseTime(in.End)
	if err != nil {
		return models.Order{}, errors.New("end must be an ISO 8601 instant")
	}
	if end.Before(start) {
		return models.Order{}, errors.New("end must not precede start")
	}
	return models.Order{
		Identity: models.Identity(in.UserID),
		Role:     role,
		Window:   models.TimeWindow{Start: start.UTC(), End: end.UTC()},
		Address:  models.Address(in.Address),
	}, nil
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := models.OrderID(mux.Vars(r)["id"])
	user := models.Identity(r.URL.Query().Get("userid"))
	if user == "" {
		http.Error(w, "userid is required", 400)
		return
	}
	err := s.Store.DeleteOrder(r.Context(), user, id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "order not found", 404)
		return
	}
	if err != nil {
		s.logger.Error("delete order failed", "error", err)
		http.Error(w, "storage error", 500)
		return
	}
	s.refreshGauge(r)
	s.logger.Info("order cancelled", "order_id", id, "userid", user)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	user := models.Identity(r.URL.Query().Get("userid"))
	if user == "" {
		http.Error(w, "userid is required", 400)
		return
	}
	matches, err := s.Matcher.Matches(r.Context(), user)
	if err != nil {
		s.logger.Error("match query failed", "error", err)
		http.Error(w, "storage error", 500)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) refreshGauge(r *http.Request) {
	if n, err := s.Store.Count(r.Context()); err == nil {
		observability.SimOrders.Set(float64(n))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
