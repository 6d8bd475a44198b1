package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/chainlogistics/provenance/pkg/identity"
	"github.com/chainlogistics/provenance/pkg/ledger"
)

// Server routes HTTP requests to the ledger service. The acting
// identity comes from the bearer credential on every mutating call;
// claimed identities in request bodies must match it.
type Server struct {
	svc      *ledger.Service
	verifier identity.Verifier
	limiter  LimiterStore
	logger   *slog.Logger
}

// NewServer creates a Server. limiter may be nil to disable rate
// limiting (tests).
func NewServer(svc *ledger.Service, verifier identity.Verifier, limiter LimiterStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, verifier: verifier, limiter: limiter, logger: logger}
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /v1/products", s.handleRegisterProduct)
	mux.HandleFunc("GET /v1/products/{id}", s.handleGetProduct)
	mux.HandleFunc("POST /v1/products/{id}/events", s.handleAddEvent)
	mux.HandleFunc("POST /v1/products/{id}/events/batch", s.handleAddEventsBatch)
	mux.HandleFunc("GET /v1/products/{id}/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/products/{id}/events/{seq}", s.handleGetEvent)
	mux.HandleFunc("GET /v1/products/{id}/governance", s.handleListGovernance)
	mux.HandleFunc("POST /v1/products/{id}/transfer", s.handleTransfer)
	mux.HandleFunc("POST /v1/products/{id}/actors", s.handleAddActor)
	mux.HandleFunc("DELETE /v1/products/{id}/actors/{actor}", s.handleRemoveActor)
	mux.HandleFunc("GET /v1/products/{id}/actors/{actor}", s.handleIsAuthorized)
	mux.HandleFunc("POST /v1/products/{id}/active", s.handleSetActive)

	mux.HandleFunc("GET /v1/event-types", s.handleListEventTypes)
	mux.HandleFunc("POST /v1/event-types", s.handleRegisterEventType)

	return s.withRequestLog(s.withRateLimit(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actor authenticates the bearer credential and returns the verified
// acting identity.
func (s *Server) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	credential, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || credential == "" {
		WriteUnauthenticated(w, "missing bearer credential")
		return "", false
	}
	subject, err := s.verifier.Authenticate(r.Context(), credential)
	if err != nil {
		WriteUnauthenticated(w, "credential rejected")
		return "", false
	}
	return subject, true
}

func (s *Server) handleRegisterProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	var req ledger.NewProduct
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Owner != "" && req.Owner != actor {
		WriteForbidden(w, "owner must match the authenticated identity")
		return
	}
	req.Owner = actor

	p, err := s.svc.RegisterProduct(r.Context(), req)
	if err != nil {
		WriteLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	var in ledger.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	ev, err := s.svc.AddTrackingEvent(r.Context(), r.PathValue("id"), actor, in)
	if err != nil {
		WriteLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleAddEventsBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 4<<20)
	var req struct {
		Events []ledger.EventInput `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	events, err := s.svc.AddTrackingEventsBatch(r.Context(), r.PathValue("id"), actor, req.Events)
	if err != nil {
		WriteLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"events": events})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	events, err := s.svc.GetTrackingEvents(r.Context(), r.PathValue("id"), rng)
	if err != nil {
		WriteLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseUint(r.PathValue("seq"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "sequence must be a non-negative integer")
		return
	}
	ev, err := s.svc.GetEvent(r.Context(), r.PathValue("id"), seq)
	if err != nil {
		WriteLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleListGovernance(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	events, err := s.svc.GetGovernanceEvents(r.Context(), r.PathValue("id"), rng)
	if err != nil {
		WriteLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		NewOwner string `json:"new_owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := s.svc.TransferOwnership(r.Context(), r.PathValue("id"), actor, req.NewOwner); err != nil {
		WriteLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddActor(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		Actor string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := s.svc.AddAuthorizedActor(r.Context(), r.PathValue("id"), actor, req.Actor); err != nil {
		WriteLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveActor(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	if err := s.svc.RemoveAuthorizedActor(r.Context(), r.PathValue("id"), actor, r.PathValue("actor")); err != nil {
		WriteLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIsAuthorized(w http.ResponseWriter, r *http.Request) {
	authorized, err := s.svc.IsAuthorized(r.Context(), r.PathValue("id"), r.PathValue("actor"))
	if err != nil {
		WriteLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authorized": authorized})
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := s.svc.SetProductActive(r.Context(), r.PathValue("id"), actor, req.Active); err != nil {
		WriteLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEventTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"event_types": s.svc.Tags().List()})
}

func (s *Server) handleRegisterEventType(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.actor(w, r); !ok {
		return
	}

	var req ledger.Tag
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Name == "" {
		WriteBadRequest(w, "event type name must be non-empty")
		return
	}

	s.svc.Tags().Register(req.Name, req.Display)
	w.WriteHeader(http.StatusNoContent)
}

// parseRange maps pagination query parameters onto a ledger.Range.
func parseRange(r *http.Request) (ledger.Range, error) {
	var rng ledger.Range
	if v := r.URL.Query().Get("start"); v != "" {
		start, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return ledger.Range{}, &ProblemDetail{Title: "Bad Request", Detail: "start must be a non-negative integer"}
		}
		rng.Start = start
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return ledger.Range{}, &ProblemDetail{Title: "Bad Request", Detail: "limit must be a non-negative integer"}
		}
		rng.Limit = limit
	}
	return rng, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
