package distributor

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

/*
Server exposes the distributor over HTTP.

Claim Flow:
  POST /claim:
    - Request: { account_id, amount, proof: [{ hash, position }] }
    - Amount is a decimal string in token base units
    - Proof digests are lowercase 0x-prefixed hex, positions "left"/"right"
    - Gate order: ledger check, proof verification, ledger write, transfer
    - 200 on success, 409 already claimed, 403 invalid proof,
      400 malformed proof, 502 claim recorded but transfer failed

Root Rotation:
  POST /root:
    - Request: { root, caller }
    - Only the owner account may rotate; 401 otherwise
    - Rotation is non-retroactive for settled claims

Query Surface (read-only):
  GET /root               - currently active root
  GET /claimed?account=X  - whether an account has claimed
  GET /pending?account=X  - the account's parked transfer, if any
  GET /healthz            - store health

Failed Transfer Queue:
  POST /retry:
    - Request: { account_id }
    - Replays the parked transfer for an account whose payout failed
*/

// claimRateLimit bounds claim attempts per second; proof verification is
// cheap but the endpoint takes adversarial input.
const (
	claimRateLimit = 50
	claimRateBurst = 100
)

// Server handles HTTP requests for the distributor
type Server struct {
	distributor  *Distributor
	logger       *zap.Logger
	claimLimiter *rate.Limiter
	httpServer   *http.Server
}

// NewServer creates a new server instance
func NewServer(d *Distributor, port int, logger *zap.Logger) *Server {
	s := &Server{
		distributor:  d,
		logger:       logger,
		claimLimiter: rate.NewLimiter(rate.Limit(claimRateLimit), claimRateBurst),
	}

	mux := http.NewServeMux()

	// Claim flow
	mux.HandleFunc("/claim", s.handleClaim)
	mux.HandleFunc("/retry", s.handleRetry)

	// Root registry
	mux.HandleFunc("/root", s.handleRoot)

	// Query surface
	mux.HandleFunc("/claimed", s.handleClaimed)
	mux.HandleFunc("/pending", s.handlePending)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
