package gateway

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/chatpool/internal/domain"
)

// handleAccountsCount reports the pool snapshot.
func (s *Server) handleAccountsCount(w http.ResponseWriter, r *http.Request) {
	if !s.checkAdminKey(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.mgr.Current().Snapshot())
}

// handleAccountsUpload adds a harvested account to the pool.
func (s *Server) handleAccountsUpload(w http.ResponseWriter, r *http.Request) {
	if !s.checkAdminKey(w, r) {
		return
	}

	var acc domain.AccountConfig
	if err := json.NewDecoder(r.Body).Decode(&acc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := acc.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.adminMu.Lock()
	defer s.adminMu.Unlock()

	list := s.mgr.Current().Configs()
	if acc.ID == "" {
		acc.ID = fmt.Sprintf("account_%d", len(list)+1)
	}
	for _, existing := range list {
		if existing.ID == acc.ID {
			writeError(w, http.StatusConflict, fmt.Sprintf("account %s already exists", acc.ID))
			return
		}
	}

	p, err := s.installList(append(list, acc))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info().Str("account", acc.ID).Msg("account added via admin api")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"message":       fmt.Sprintf("account %s added", acc.ID),
		"account_count": p.Len(),
	})
}

type expiredEntry struct {
	ID        string `json:"id"`
	ExpiresAt string `json:"expires_at"`
	Status    string `json:"status"`
}

type expiringEntry struct {
	ID             string  `json:"id"`
	ExpiresAt      string  `json:"expires_at"`
	RemainingHours float64 `json:"remaining_hours"`
	Status         string  `json:"status"`
}

// handleAccountsExpired lists expired accounts and those expiring within
// the requested horizon. Expiry is judged on the upstream's clock.
func (s *Server) handleAccountsExpired(w http.ResponseWriter, r *http.Request) {
	if !s.checkAdminKey(w, r) {
		return
	}

	hours := 1.0
	if v := r.URL.Query().Get("hours"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid hours parameter")
			return
		}
		hours = parsed
	}

	now := time.Now()
	expired := []expiredEntry{}
	expiring := []expiringEntry{}

	for _, acc := range s.mgr.Current().Configs() {
		if acc.Disabled {
			continue
		}
		exp, ok := acc.ExpiryTime()
		if !ok {
			continue
		}

		remaining := exp.Sub(now).Hours()
		switch {
		case remaining <= 0:
			expired = append(expired, expiredEntry{
				ID:        acc.ID,
				ExpiresAt: acc.ExpiresAt,
				Status:    "expired",
			})
		case remaining <= hours:
			expiring = append(expiring, expiringEntry{
				ID:             acc.ID,
				ExpiresAt:      acc.ExpiresAt,
				RemainingHours: math.Round(remaining*100) / 100,
				Status:         "expiring",
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"expired":        expired,
		"expiring":       expiring,
		"total_expired":  len(expired),
		"total_expiring": len(expiring),
	})
}

type refreshTokenRequest struct {
	AccountID  string `json:"account_id"`
	SecureCSes string `json:"secure_c_ses"`
	HostCOses  string `json:"host_c_oses"`
	CSesIdx    string `json:"csesidx"`
	ConfigID   string `json:"config_id"`
	ExpiresAt  string `json:"expires_at"`
}

// handleAccountsRefreshToken replaces an account's credentials and clears
// its runtime penalties so it re-enters rotation immediately.
func (s *Server) handleAccountsRefreshToken(w http.ResponseWriter, r *http.Request) {
	if !s.checkAdminKey(w, r) {
		return
	}

	var req refreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "missing account_id field")
		return
	}
	var missing []string
	if req.SecureCSes == "" {
		missing = append(missing, "secure_c_ses")
	}
	if req.CSesIdx == "" {
		missing = append(missing, "csesidx")
	}
	if req.ConfigID == "" {
		missing = append(missing, "config_id")
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return
	}

	s.adminMu.Lock()
	defer s.adminMu.Unlock()

	list := s.mgr.Current().Configs()
	found := false
	for i := range list {
		if list[i].ID == req.AccountID {
			list[i].SecureCSes = req.SecureCSes
			list[i].HostCOses = req.HostCOses
			list[i].CSesIdx = req.CSesIdx
			list[i].ConfigID = req.ConfigID
			list[i].ExpiresAt = req.ExpiresAt
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("account %s not found", req.AccountID))
		return
	}

	p, err := s.installList(list)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Fresh credentials wipe the slate: cooldowns and error counts belong
	// to the old session.
	if rec, err := p.Get(req.AccountID); err == nil {
		rec.ResetRuntime()
	}

	s.log.Info().Str("account", req.AccountID).Msg("account credentials refreshed via admin api")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"message":    fmt.Sprintf("account %s token updated", req.AccountID),
		"account_id": req.AccountID,
	})
}

type disableRequest struct {
	AccountID string `json:"account_id"`
}

// handleAccountsDisable takes an account out of rotation. Disabling an
// already-disabled account succeeds.
func (s *Server) handleAccountsDisable(w http.ResponseWriter, r *http.Request) {
	if !s.checkAdminKey(w, r) {
		return
	}

	var req disableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "missing account_id field")
		return
	}

	s.adminMu.Lock()
	defer s.adminMu.Unlock()

	list := s.mgr.Current().Configs()
	found := false
	for i := range list {
		if list[i].ID == req.AccountID {
			list[i].Disabled = true
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("account %s not found", req.AccountID))
		return
	}

	if _, err := s.installList(list); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info().Str("account", req.AccountID).Msg("account disabled via admin api")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"message":    fmt.Sprintf("account %s disabled", req.AccountID),
		"account_id": req.AccountID,
	})
}
