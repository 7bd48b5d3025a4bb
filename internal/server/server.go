// Package server exposes the Paperclip runtime over HTTP: one endpoint
// accepting signed transaction envelopes, read-only record views, and a
// WebSocket stream of commit receipts.
package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cliplabs/paperclip/internal/ledger"
	"github.com/cliplabs/paperclip/internal/ratelimit"
	"github.com/cliplabs/paperclip/internal/runtime"
)

// Server is the paperclipd HTTP API.
type Server struct {
	rt      *runtime.Runtime
	limiter *ratelimit.Limiter
	mux     *http.ServeMux
}

// New creates a Server with all routes registered. txPerMinute bounds
// transaction submissions per client IP.
func New(rt *runtime.Runtime, txPerMinute int) *Server {
	s := &Server{
		rt:      rt,
		limiter: ratelimit.New(txPerMinute, time.Minute),
		mux:     http.NewServeMux(),
	}
	s.routes()
	go func() {
		for {
			time.Sleep(time.Minute)
			s.limiter.Cleanup()
		}
	}()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// routes registers all HTTP routes on the server mux.
func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Transactions
	s.mux.HandleFunc("POST /api/tx", s.handleSubmitTx)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)

	// Record views
	s.mux.HandleFunc("GET /api/protocol", s.handleProtocol)
	s.mux.HandleFunc("GET /api/agents/{wallet}", s.handleAgent)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTask)
	s.mux.HandleFunc("GET /api/tasks/{id}/claims/{wallet}", s.handleClaim)
	s.mux.HandleFunc("GET /api/invites/{wallet}", s.handleInvite)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "paperclipd",
	})
}

// handleSubmitTx accepts a signed transaction envelope, executes it, and
// returns the commit receipt.
func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var tx runtime.Tx
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction envelope")
		return
	}
	if tx.ID == "" || tx.Op == "" {
		writeError(w, http.StatusBadRequest, "transaction id and op are required")
		return
	}

	receipt, err := s.rt.Execute(&tx)
	if err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleProtocol(w http.ResponseWriter, r *http.Request) {
	addr, _, err := ledger.ProtocolAddress()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	data, found, err := s.rt.View(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "protocol not initialized")
		return
	}
	p, err := ledger.DecodeProtocol(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, protocolView(p, addr))
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	wallet, err := ledger.IdentityFromHex(r.PathValue("wallet"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid wallet")
		return
	}
	addr, _, err := ledger.AgentAddress(wallet)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	data, found, err := s.rt.View(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "agent not registered")
		return
	}
	a, err := ledger.DecodeAgent(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agentView(a, addr))
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseTaskID(w, r.PathValue("id"))
	if !ok {
		return
	}
	addr, _, err := ledger.TaskAddress(taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	data, found, err := s.rt.View(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	t, err := ledger.DecodeTask(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, taskView(t, addr))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseTaskID(w, r.PathValue("id"))
	if !ok {
		return
	}
	wallet, err := ledger.IdentityFromHex(r.PathValue("wallet"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid wallet")
		return
	}
	addr, _, err := ledger.ClaimAddress(taskID, wallet)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	data, found, err := s.rt.View(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "claim not found")
		return
	}
	c, err := ledger.DecodeClaim(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, claimView(c, addr))
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	wallet, err := ledger.IdentityFromHex(r.PathValue("wallet"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid wallet")
		return
	}
	addr, _, err := ledger.InviteAddress(wallet)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	data, found, err := s.rt.View(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "invite not found")
		return
	}
	iv, err := ledger.DecodeInvite(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, inviteView(iv, addr))
}

func parseTaskID(w http.ResponseWriter, raw string) (uint32, bool) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return uint32(id), true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeRejection maps a transition failure to an HTTP status and a stable
// error kind string clients can switch on.
func writeRejection(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrRecordExists):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrRecordNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  rejectionKind(err),
	})
}

// rejectionKind returns the stable kind name for a transition failure.
func rejectionKind(err error) string {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ledger.ErrTaskInactive):
		return "task_inactive"
	case errors.Is(err, ledger.ErrTaskFullyClaimed):
		return "task_fully_claimed"
	case errors.Is(err, ledger.ErrMathOverflow):
		return "math_overflow"
	case errors.Is(err, ledger.ErrTierTooLow):
		return "tier_too_low"
	case errors.Is(err, ledger.ErrMissingRequiredTaskProof):
		return "missing_required_task_proof"
	case errors.Is(err, ledger.ErrInvalidPrerequisiteAccount):
		return "invalid_prerequisite_account"
	case errors.Is(err, ledger.ErrInvalidTaskPrerequisite):
		return "invalid_task_prerequisite"
	case errors.Is(err, ledger.ErrInvalidInviteCode):
		return "invalid_invite_code"
	case errors.Is(err, ledger.ErrInviteInactive):
		return "invite_inactive"
	case errors.Is(err, ledger.ErrSelfReferralNotAllowed):
		return "self_referral_not_allowed"
	case errors.Is(err, ledger.ErrRecordExists):
		return "record_exists"
	case errors.Is(err, ledger.ErrRecordNotFound):
		return "record_not_found"
	case errors.Is(err, ledger.ErrBadRecord), errors.Is(err, ledger.ErrLayoutVersion):
		return "bad_record"
	default:
		return "rejected"
	}
}

// clientIP extracts the client IP from a request, honoring
// X-Forwarded-For for proxied deployments.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
