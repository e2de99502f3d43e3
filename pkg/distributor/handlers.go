package distributor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/driftlake/merkledrop-go/pkg/merkle"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

// ClaimRequest is the JSON body of POST /claim.
type ClaimRequest struct {
	AccountID string                 `json:"account_id"`
	Amount    string                 `json:"amount"`
	Proof     []merkle.ProofStepWire `json:"proof"`
}

// SetRootRequest is the JSON body of POST /root.
type SetRootRequest struct {
	Root   string `json:"root"`
	Caller string `json:"caller"`
}

// RetryRequest is the JSON body of POST /retry.
type RetryRequest struct {
	AccountID string `json:"account_id"`
}

// RootResponse is the JSON body of GET /root.
type RootResponse struct {
	Root string `json:"root"`
}

// ClaimedResponse is the JSON body of GET /claimed.
type ClaimedResponse struct {
	AccountID string `json:"account_id"`
	Claimed   bool   `json:"claimed"`
}

// handleClaim handles POST /claim
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.claimLimiter.Allow() {
		http.Error(w, "Too many claim attempts", http.StatusTooManyRequests)
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	amount, err := types.ParseAmount(req.Amount)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid amount: %v", err), http.StatusBadRequest)
		return
	}

	proof, err := merkle.DecodeProofSteps(req.Proof)
	if err != nil {
		s.writeClaimError(w, err)
		return
	}

	if err := s.distributor.Claim(r.Context(), types.AccountID(req.AccountID), amount, proof); err != nil {
		s.writeClaimError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleRetry handles POST /retry
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	if err := s.distributor.RetryTransfer(r.Context(), types.AccountID(req.AccountID)); err != nil {
		s.writeClaimError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleRoot handles GET /root (query) and POST /root (owner rotation)
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, RootResponse{Root: merkle.EncodeDigest(s.distributor.Root())})

	case http.MethodPost:
		var req SetRootRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
			return
		}

		newRoot, err := merkle.DecodeDigest(req.Root)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid root: %v", err), http.StatusBadRequest)
			return
		}

		if err := s.distributor.SetRoot(newRoot, types.AccountID(req.Caller)); err != nil {
			s.writeClaimError(w, err)
			return
		}

		w.WriteHeader(http.StatusOK)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleClaimed handles GET /claimed?account=X
func (s *Server) handleClaimed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	account := r.URL.Query().Get("account")
	if account == "" {
		http.Error(w, "account query parameter is required", http.StatusBadRequest)
		return
	}

	claimed, err := s.distributor.HasClaimed(types.AccountID(account))
	if err != nil {
		s.logger.Sugar().Errorw("Failed to query claim ledger", "account", account, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, ClaimedResponse{AccountID: account, Claimed: claimed})
}

// handlePending handles GET /pending?account=X
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	account := r.URL.Query().Get("account")
	if account == "" {
		http.Error(w, "account query parameter is required", http.StatusBadRequest)
		return
	}

	pending, err := s.distributor.PendingTransfer(types.AccountID(account))
	if err != nil {
		s.logger.Sugar().Errorw("Failed to query pending transfers", "account", account, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if pending == nil {
		http.Error(w, "No pending transfer", http.StatusNotFound)
		return
	}

	writeJSON(w, pending)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.distributor.HealthCheck(); err != nil {
		http.Error(w, fmt.Sprintf("Unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// writeClaimError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeClaimError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrAlreadyClaimed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, types.ErrInvalidProofFormat):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, types.ErrInvalidProof):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, types.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, types.ErrNoPendingTransfer):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, types.ErrTransferFailed):
		// The claim (if any) is recorded; only the payout failed.
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		s.logger.Sugar().Errorw("Request failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
