package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ReserveVault/internal/query"
)

type depositNativeRequest struct {
	Depositor string `json:"depositor"`
	Amount    int64  `json:"amount"`
}

type depositAssetRequest struct {
	Depositor string `json:"depositor"`
	Asset     string `json:"asset"`
	Amount    int64  `json:"amount"`
}

type withdrawRequest struct {
	Depositor string `json:"depositor"`
	Asset     string `json:"asset"`
	Amount    int64  `json:"amount"`
}

type sweepRequest struct {
	Asset string `json:"asset"`
}

type reserveResponse struct {
	Total    int64  `json:"total"`
	Cap      int64  `json:"cap"`
	Deposits uint64 `json:"deposits"`
}

func (s *Server) handleDepositNative(w http.ResponseWriter, r *http.Request) {
	var req depositNativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "input", "malformed request body")
		return
	}
	depositor, err := uuid.Parse(req.Depositor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "input", "depositor must be a UUID")
		return
	}

	evt, err := s.vault.DepositNative(r.Context(), depositor, req.Amount)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

func (s *Server) handleDepositAsset(w http.ResponseWriter, r *http.Request) {
	var req depositAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "input", "malformed request body")
		return
	}
	depositor, err := uuid.Parse(req.Depositor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "input", "depositor must be a UUID")
		return
	}

	evt, err := s.vault.DepositAsset(r.Context(), depositor, req.Asset, req.Amount)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "input", "malformed request body")
		return
	}
	depositor, err := uuid.Parse(req.Depositor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "input", "depositor must be a UUID")
		return
	}

	evt, err := s.vault.Withdraw(r.Context(), depositor, req.Asset, req.Amount)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "input", "malformed request body")
		return
	}

	evt, err := s.vault.Sweep(r.Context(), s.operator, req.Asset)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

// handleReserve reports the live ledger aggregate, not the projection:
// the cap decision is made against this state, so it is what operators
// want to see.
func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	total, cap, deposits := s.vault.ReserveState()
	writeJSON(w, http.StatusOK, reserveResponse{Total: total, Cap: cap, Deposits: deposits})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	depositor, err := uuid.Parse(chi.URLParam(r, "depositor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "input", "depositor must be a UUID")
		return
	}

	resp, err := s.queries.GetBalance(r.Context(), depositor, chi.URLParam(r, "asset"))
	if err != nil {
		s.logger.Error().Err(err).Msg("balance query failed")
		writeError(w, http.StatusInternalServerError, "internal", "query failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	depositor, err := uuid.Parse(chi.URLParam(r, "depositor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "input", "depositor must be a UUID")
		return
	}

	resp, err := s.queries.GetBalances(r.Context(), depositor)
	if err != nil {
		s.logger.Error().Err(err).Msg("balances query failed")
		writeError(w, http.StatusInternalServerError, "internal", "query failed")
		return
	}
	if resp == nil {
		resp = []query.BalanceResponse{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	account, err := uuid.Parse(chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "input", "account must be a UUID")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	resp, err := s.queries.GetOperations(r.Context(), account, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("operations query failed")
		writeError(w, http.StatusInternalServerError, "internal", "query failed")
		return
	}
	if resp == nil {
		resp = []query.OperationResponse{}
	}
	writeJSON(w, http.StatusOK, resp)
}
