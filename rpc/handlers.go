package rpc

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lockmint/native/registry"
)

type proxyResponse struct {
	ProxyID   uint64 `json:"proxyId"`
	StakeID   uint64 `json:"stakeId"`
	Custody   string `json:"custody"`
	Owner     string `json:"owner,omitempty"`
	TokenID   uint64 `json:"tokenId,omitempty"`
	Tokenized bool   `json:"tokenized"`
}

func encodeProxy(p *registry.Proxy) proxyResponse {
	resp := proxyResponse{
		ProxyID:   p.ID,
		StakeID:   p.StakeID,
		Custody:   encodeModuleAddress(p.Custody),
		Tokenized: p.Ownership.Kind == registry.KindToken,
	}
	if p.Ownership.Kind == registry.KindDirect {
		resp.Owner = encodeAddress(p.Ownership.Owner)
	} else {
		resp.TokenID = p.Ownership.TokenID
	}
	return resp
}

func (s *Server) handleStakeStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner    string `json:"owner"`
		Amount   string `json:"amount"`
		LockDays uint64 `json:"lockDays"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	proxy, err := s.engine.StakeStart(owner, amount, req.LockDays)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, encodeProxy(proxy))
}

func (s *Server) handleStakeEnd(w http.ResponseWriter, r *http.Request) {
	proxyID, err := pathUint(r, "proxyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
		Index  int    `json:"index"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payout, err := s.engine.StakeEnd(caller, req.Index, proxyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"payout": amountString(payout)})
}

func (s *Server) handleStakeTokenize(w http.ResponseWriter, r *http.Request) {
	proxyID, err := pathUint(r, "proxyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tokenID, err := s.engine.StakeTokenize(caller, proxyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"tokenId": tokenID})
}

func (s *Server) handleStakeDetokenize(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathUint(r, "tokenID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	proxy, err := s.engine.StakeDetokenize(caller, tokenID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, encodeProxy(proxy))
}

func (s *Server) handleTokenTransfer(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathUint(r, "tokenID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.TransferStakeToken(from, to, tokenID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGoodAccounting(w http.ResponseWriter, r *http.Request) {
	proxyID, err := pathUint(r, "proxyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.GoodAccounting(proxyID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type nativeStakeRequest struct {
	Caller  string `json:"caller"`
	Index   int    `json:"index"`
	StakeID uint64 `json:"stakeId"`
}

func (s *Server) handleMintNative(w http.ResponseWriter, r *http.Request) {
	var req nativeStakeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payout, err := s.engine.MintNative(caller, req.Index, req.StakeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"payout": amountString(payout)})
}

func (s *Server) handleClaimNative(w http.ResponseWriter, r *http.Request) {
	var req nativeStakeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	served, err := s.engine.ClaimNative(caller, req.Index, req.StakeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"servedDays": served})
}

type instancedRequest struct {
	Caller  string `json:"caller"`
	Index   int    `json:"index"`
	ProxyID uint64 `json:"proxyId"`
}

func (s *Server) handleMintInstanced(w http.ResponseWriter, r *http.Request) {
	var req instancedRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payout, err := s.engine.MintInstanced(caller, req.Index, req.ProxyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"payout": amountString(payout)})
}

func (s *Server) handleClaimInstanced(w http.ResponseWriter, r *http.Request) {
	var req instancedRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	served, err := s.engine.ClaimInstanced(caller, req.Index, req.ProxyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"servedDays": served})
}

func (s *Server) handleLoanOpen(w http.ResponseWriter, r *http.Request) {
	proxyID, err := pathUint(r, "proxyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
		Index  int    `json:"index"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opened, err := s.engine.LoanInstanced(caller, req.Index, proxyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"proxyId":   opened.ProxyID,
		"principal": amountString(opened.Principal),
		"termDays":  opened.TermDays,
	})
}

func (s *Server) handleLoanGet(w http.ResponseWriter, r *http.Request) {
	proxyID, err := pathUint(r, "proxyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opened := s.engine.Loan(proxyID)
	if opened == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "loan not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"proxyId":         opened.ProxyID,
		"borrower":        encodeAddress(opened.Borrower),
		"principal":       amountString(opened.Principal),
		"termDays":        opened.TermDays,
		"paidDays":        opened.PaidDays,
		"lastInteraction": opened.LastInteraction,
	})
}

type chargeResponse struct {
	Due string `json:"due"`
	Fee string `json:"fee"`
}

func (s *Server) handleCalcLoanPayment(w http.ResponseWriter, r *http.Request) {
	proxyID, err := pathUint(r, "proxyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	due, fee, err := s.engine.CalcLoanPayment(proxyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, chargeResponse{Due: amountString(due), Fee: amountString(fee)})
}

func (s *Server) handleCalcLoanPayoff(w http.ResponseWriter, r *http.Request) {
	proxyID, err := pathUint(r, "proxyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	due, fee, err := s.engine.CalcLoanPayoff(proxyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, chargeResponse{Due: amountString(due), Fee: amountString(fee)})
}

func (s *Server) handleLoanPayment(w http.ResponseWriter, r *http.Request) {
	s.settleLoan(w, r, false)
}

func (s *Server) handleLoanPayoff(w http.ResponseWriter, r *http.Request) {
	s.settleLoan(w, r, true)
}

func (s *Server) settleLoan(w http.ResponseWriter, r *http.Request, payoff bool) {
	proxyID, err := pathUint(r, "proxyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	settle := s.engine.LoanPayment
	if payoff {
		settle = s.engine.LoanPayoff
	}
	due, fee, err := settle(caller, proxyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, chargeResponse{Due: amountString(due), Fee: amountString(fee)})
}

func (s *Server) handleLoanLiquidate(w http.ResponseWriter, r *http.Request) {
	proxyID, err := pathUint(r, "proxyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Caller   string `json:"caller"`
		Borrower string `json:"borrower"`
		Index    int    `json:"index"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	borrower, err := parseAddress(req.Borrower)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	liq, err := s.engine.LoanLiquidate(caller, borrower, req.Index, proxyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"liquidationId": liq.ID,
		"bidAmount":     amountString(liq.BidAmount),
		"endsAt":        liq.EndsAt,
	})
}

func (s *Server) handleLiquidationBid(w http.ResponseWriter, r *http.Request) {
	liquidationID, err := pathUint(r, "liquidationID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
		Amount string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	liq, err := s.engine.LoanLiquidateBid(caller, liquidationID, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"bidAmount": amountString(liq.BidAmount),
		"bidder":    encodeAddress(liq.Bidder),
		"endsAt":    liq.EndsAt,
	})
}

func (s *Server) handleLiquidationExit(w http.ResponseWriter, r *http.Request) {
	liquidationID, err := pathUint(r, "liquidationID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	liq, err := s.engine.LoanLiquidateExit(liquidationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"winner":      encodeAddress(liq.Bidder),
		"debtCleared": amountString(liq.Debt),
	})
}

func (s *Server) handleProofOfBenevolence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		Amount string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.ProofOfBenevolence(caller, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"burned": amountString(amount)})
}

func (s *Server) handleCurrentDay(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]uint64{"day": s.engine.CurrentDay()})
}

func (s *Server) handleDayEntry(w http.ResponseWriter, r *http.Request) {
	day, err := pathUint(r, "day")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, ok := s.engine.DayEntry(day)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "day not recorded"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"day":          entry.Day,
		"mintedSupply": amountString(entry.MintedSupply),
		"loanedSupply": amountString(entry.LoanedSupply),
		"stakedValue":  amountString(entry.StakedValue),
	})
}

func (s *Server) handleTotalSupply(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"totalSupply": amountString(s.engine.TotalSupply())})
}

func (s *Server) handleLoanedSupply(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"loanedSupply": amountString(s.engine.LoanedSupply())})
}

func (s *Server) handleRoyaltyInfo(w http.ResponseWriter, r *http.Request) {
	salePrice, err := parseAmount(r.URL.Query().Get("salePrice"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	receiver, royalty := s.engine.RoyaltyInfo(salePrice)
	s.writeJSON(w, http.StatusOK, map[string]string{
		"receiver": encodeModuleAddress(receiver),
		"royalty":  amountString(royalty),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"balance": amountString(s.engine.BalanceOf(addr))})
}

func (s *Server) handleProxyList(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count := s.engine.ProxyCount(addr)
	proxies := make([]proxyResponse, 0, count)
	for i := 0; i < count; i++ {
		proxy, err := s.engine.ProxyAt(addr, i)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		proxies = append(proxies, encodeProxy(proxy))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"count": count, "proxies": proxies})
}
