package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"lockmint/core"
	"lockmint/crypto"
	nativecommon "lockmint/native/common"
	"lockmint/native/liquidation"
	"lockmint/native/loan"
	"lockmint/native/minting"
	"lockmint/native/registry"
	"lockmint/native/stake"
	"lockmint/native/token"
)

// Server exposes the engine's operation surface over HTTP JSON.
type Server struct {
	engine *core.Engine
	router chi.Router
	log    *slog.Logger
}

func NewServer(engine *core.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{engine: engine, log: log}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/stakes", s.handleStakeStart)
		r.Post("/stakes/{proxyID}/end", s.handleStakeEnd)
		r.Post("/stakes/{proxyID}/tokenize", s.handleStakeTokenize)
		r.Post("/stakes/{proxyID}/accounting", s.handleGoodAccounting)
		r.Post("/tokens/{tokenID}/detokenize", s.handleStakeDetokenize)
		r.Post("/tokens/{tokenID}/transfer", s.handleTokenTransfer)

		r.Post("/mint/native", s.handleMintNative)
		r.Post("/claim/native", s.handleClaimNative)
		r.Post("/mint/instanced", s.handleMintInstanced)
		r.Post("/claim/instanced", s.handleClaimInstanced)

		r.Post("/loans/{proxyID}", s.handleLoanOpen)
		r.Get("/loans/{proxyID}", s.handleLoanGet)
		r.Get("/loans/{proxyID}/payment", s.handleCalcLoanPayment)
		r.Get("/loans/{proxyID}/payoff", s.handleCalcLoanPayoff)
		r.Post("/loans/{proxyID}/payment", s.handleLoanPayment)
		r.Post("/loans/{proxyID}/payoff", s.handleLoanPayoff)
		r.Post("/loans/{proxyID}/liquidate", s.handleLoanLiquidate)
		r.Post("/liquidations/{liquidationID}/bid", s.handleLiquidationBid)
		r.Post("/liquidations/{liquidationID}/exit", s.handleLiquidationExit)

		r.Post("/burn", s.handleProofOfBenevolence)

		r.Get("/day", s.handleCurrentDay)
		r.Get("/days/{day}", s.handleDayEntry)
		r.Get("/supply", s.handleTotalSupply)
		r.Get("/supply/loaned", s.handleLoanedSupply)
		r.Get("/royalty", s.handleRoyaltyInfo)
		r.Get("/accounts/{address}/balance", s.handleBalance)
		r.Get("/accounts/{address}/proxies", s.handleProxyList)
	})
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("rpc request failed", "path", r.URL.Path, "err", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrProxyNotFound),
		errors.Is(err, registry.ErrTokenNotFound),
		errors.Is(err, loan.ErrLoanNotFound),
		errors.Is(err, liquidation.ErrNotFound),
		errors.Is(err, stake.ErrIndexMismatch),
		errors.Is(err, registry.ErrIndexMismatch):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrNotOwner),
		errors.Is(err, registry.ErrNotTokenHolder),
		errors.Is(err, registry.ErrTokenized):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotActive),
		errors.Is(err, core.ErrNotInDefault),
		errors.Is(err, registry.ErrLoanActive),
		errors.Is(err, registry.ErrStakeActive),
		errors.Is(err, loan.ErrLoanExists),
		errors.Is(err, liquidation.ErrAlreadyStarted),
		errors.Is(err, liquidation.ErrAuctionActive),
		errors.Is(err, liquidation.ErrAuctionClosed),
		errors.Is(err, minting.ErrStakePending),
		errors.Is(err, minting.ErrLoanActive),
		errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, liquidation.ErrBidTooLow),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, stake.ErrInvalidAmount),
		errors.Is(err, stake.ErrInvalidLock),
		errors.Is(err, stake.ErrInsufficientBal),
		errors.Is(err, stake.ErrAllowance):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("rpc: bad request")

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errBadRequest
	}
	return nil
}

func parseAddress(s string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(s)
	if err != nil {
		return [20]byte{}, errBadRequest
	}
	return addr.Array(), nil
}

func encodeAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.AccountPrefix, addr[:]).String()
}

func encodeModuleAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.ModulePrefix, addr[:]).String()
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, errBadRequest
	}
	return amount, nil
}

func pathUint(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, errBadRequest
	}
	return v, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
