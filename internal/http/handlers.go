package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-share/internal/apperr"
	"github.com/example/ride-share/internal/logging"
	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/notify"
	"github.com/example/ride-share/internal/workflow"
)

// Server exposes workflow intents to the presentation layer.
type Server struct {
	Workflow *workflow.Workflow
	Hub      *notify.Hub
	logger   *slog.Logger
	mux      *mux.Router
}

func NewServer(wf *workflow.Workflow, hub *notify.Hub, logger *slog.Logger) *Server {
	s := &Server{Workflow: wf, Hub: hub, logger: logging.Component(logger, "http"), mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods("GET")
	api.HandleFunc("/identity", s.handleIdentity).Methods("PUT")
	api.HandleFunc("/notice/{seq}", s.handleDismissNotice).Methods("DELETE")

	slots := api.PathPrefix("/slots/{role}").Subrouter()
	slots.HandleFunc("/address", s.withRole(s.handleAddress)).Methods("PUT")
	slots.HandleFunc("/start", s.withRole(s.handleStart)).Methods("PUT")
	slots.HandleFunc("/wait", s.withRole(s.handleWait)).Methods("PUT")
	slots.HandleFunc("/locate", s.withRole(s.handleLocate)).Methods("POST")
	slots.HandleFunc("/make", s.withRole(s.handleMake)).Methods("POST")
	slots.HandleFunc("/cancel", s.withRole(s.handleCancel)).Methods("POST")
	slots.HandleFunc("/matches", s.withRole(s.handleMatches)).Methods("POST")

	pay := api.PathPrefix("/payment").Subrouter()
	pay.HandleFunc("/confirm", s.handleConfirm).Methods("POST")
	pay.HandleFunc("/acknowledge", s.handleAcknowledge).Methods("POST")
	pay.HandleFunc("/details", s.handlePaymentDetails).Methods("PUT")
	pay.HandleFunc("/pay", s.handlePay).Methods("POST")
	pay.HandleFunc("/cancel", s.handlePaymentCancel).Methods("POST")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type response struct {
	View    workflow.View `json:"view"`
	OrderID string        `json:"order_id,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func (s *Server) reply(w http.ResponseWriter, resp response, err error) {
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		resp.Error = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// fail answers before any state change, e.g. for unparsable input.
func (s *Server) fail(w http.ResponseWriter, err error) {
	s.reply(w, response{View: s.Workflow.View()}, err)
}

func statusFor(err error) int {
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrDiscarded):
		return http.StatusConflict
	}
	return apperr.StatusCode(err)
}

type badRequest struct{ msg string }

func (b badRequest) Error() string { return b.msg }

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest{"invalid json: " + err.Error()}
	}
	return nil
}

// atoi parses a form field as typed into a text box.
func atoi(field, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, badRequest{fmt.Sprintf("%s must be a whole number, got %q", field, v)}
	}
	return n, nil
}

func (s *Server) withRole(h func(http.ResponseWriter, *http.Request, models.Role)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := models.ParseRole(mux.Vars(r)["role"])
		if !ok {
			s.fail(w, apperr.ErrInvalidRole)
			return
		}
		h(w, r, role)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.reply(w, response{View: s.Workflow.View()}, nil)
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Identity string `json:"identity"`
	}
	if err := decode(r, &in); err != nil {
		s.fail(w, err)
		return
	}
	s.reply(w, response{View: s.Workflow.SetIdentity(models.Identity(in.Identity))}, nil)
}

func (s *Server) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseUint(mux.Vars(r)["seq"], 10, 64)
	if err != nil {
		s.fail(w, badRequest{"invalid notice seq"})
		return
	}
	s.Workflow.DismissNotice(seq)
	s.reply(w, response{View: s.Workflow.View()}, nil)
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request, role models.Role) {
	var in struct {
		Address string `json:"address"`
	}
	if err := decode(r, &in); err != nil {
		s.fail(w, err)
		return
	}
	v, err := s.Workflow.SetAddress(role, models.Address(in.Address))
	s.reply(w, response{View: v}, err)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, role models.Role) {
	var in struct {
		Hours   string `json:"hours"`
		Minutes string `json:"minutes"`
	}
	if err := decode(r, &in); err != nil {
		s.fail(w, err)
		return
	}
	h, err := atoi("hours", in.Hours)
	if err != nil {
		s.fail(w, err)
		return
	}
	m, err := atoi("minutes", in.Minutes)
	if err != nil {
		s.fail(w, err)
		return
	}
	v, err := s.Workflow.SetStartTime(role, h, m)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.reply(w, response{View: v}, nil)
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request, role models.Role) {
	var in struct {
		Minutes string `json:"minutes"`
	}
	if err := decode(r, &in); err != nil {
		s.fail(w, err)
		return
	}
	m, err := atoi("minutes", in.Minutes)
	if err != nil {
		s.fail(w, err)
		return
	}
	v, err := s.Workflow.SetWait(role, m)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.reply(w, response{View: v}, nil)
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request, role models.Role) {
	_, err := s.Workflow.LocateAddress(r.Context(), role)
	s.reply(w, response{View: s.Workflow.View()}, err)
}

func (s *Server) handleMake(w http.ResponseWriter, r *http.Request, role models.Role) {
	id, err := s.Workflow.Make(r.Context(), role)
	s.reply(w, response{View: s.Workflow.View(), OrderID: string(id)}, err)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, role models.Role) {
	err := s.Workflow.Cancel(r.Context(), role)
	s.reply(w, response{View: s.Workflow.View()}, err)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request, role models.Role) {
	_, err := s.Workflow.QueryMatches(r.Context(), role)
	s.reply(w, response{View: s.Workflow.View()}, err)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	v, err := s.Workflow.ConfirmAndPay()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.reply(w, response{View: v}, nil)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Accept bool `json:"accept"`
	}
	if err := decode(r, &in); err != nil {
		s.fail(w, err)
		return
	}
	v, err := s.Workflow.Acknowledge(in.Accept)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.reply(w, response{View: v}, nil)
}

func (s *Server) handlePaymentDetails(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Details string `json:"details"`
	}
	if err := decode(r, &in); err != nil {
		s.fail(w, err)
		return
	}
	v, err := s.Workflow.SetPaymentDetails(in.Details)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.reply(w, response{View: v}, nil)
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	err := s.Workflow.Pay(r.Context())
	s.reply(w, response{View: s.Workflow.View()}, err)
}

func (s *Server) handlePaymentCancel(w http.ResponseWriter, r *http.Request) {
	v, err := s.Workflow.CancelPayment()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.reply(w, response{View: v}, nil)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		id = uuid.NewString()
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	s.Hub.Add(id, conn, s.Workflow.View)
	go s.Hub.Serve(id, conn)
}
