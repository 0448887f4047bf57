// cmd/server/ops.go
package main

import (
	"encoding/json"
	"net/http"
	"time"

	"association-backend/internal/access"
	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/common/logger"
	"association-backend/internal/common/observability"
	"association-backend/internal/common/validation"
	"association-backend/internal/lifecycle"
	"association-backend/internal/models"
	"association-backend/internal/notification"
	"association-backend/internal/promotion"
	"association-backend/pkg/capability"
)

// statusRecorder captures the response code for operation metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records a counter and duration sample per request.
func instrument(obs *observability.Observability, op string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		status := "success"
		if rec.status >= http.StatusBadRequest {
			status = "error"
		}
		obs.RecordOperation(r.Context(), op, status)
		obs.RecordDuration(r.Context(), op, time.Since(start))
	}
}

// registerOpsHandlers mounts the operator surface on the default mux, next
// to health and metrics. The caller's role id travels in X-Role-Id; every
// mutating endpoint runs a capability check first.
func registerOpsHandlers(obs *observability.Observability, resolver *access.Resolver,
	fanout *notification.Fanout, engine *lifecycle.Engine, ranked *promotion.RankedList,
	log logger.Logger) {

	http.HandleFunc("/ops/dispatch", instrument(obs, "dispatch", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := resolver.RequireCapability(r.Context(), r.Header.Get("X-Role-Id"),
			capability.NotificationModify); err != nil {
			writeError(w, err)
			return
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, stderrors.NewValidationError("malformed JSON body"))
			return
		}
		if err := validation.ValidateDispatchPayload(payload); err != nil {
			writeError(w, stderrors.NewValidationError(err.Error()))
			return
		}

		var req struct {
			Target  notification.Target `json:"target"`
			Subject string              `json:"subject"`
			Content string              `json:"content"`
			Media   string              `json:"media"`
			Channel models.Channel      `json:"channel"`
		}
		raw, _ := json.Marshal(payload)
		if err := json.Unmarshal(raw, &req); err != nil {
			writeError(w, stderrors.NewValidationError("malformed dispatch request"))
			return
		}

		result, err := fanout.Dispatch(r.Context(), notification.DispatchRequest{
			Target:     req.Target,
			Subject:    req.Subject,
			Content:    req.Content,
			Media:      req.Media,
			Channel:    req.Channel,
			SenderKind: models.SenderAdmin,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}))

	http.HandleFunc("/ops/tick", instrument(obs, "tick", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := resolver.RequireCapability(r.Context(), r.Header.Get("X-Role-Id"),
			capability.MemberModify); err != nil {
			writeError(w, err)
			return
		}

		result, err := engine.RunDailyTick(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}))

	http.HandleFunc("/ops/promotions", instrument(obs, "promotions_list", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := resolver.RequireCapability(r.Context(), r.Header.Get("X-Role-Id"),
			capability.PromotionView); err != nil {
			writeError(w, err)
			return
		}

		typ := models.PromotionType(r.URL.Query().Get("type"))
		if !models.ValidPromotionType(typ) {
			writeError(w, stderrors.NewValidationError("unknown promotion type"))
			return
		}
		slots, err := ranked.ListByType(r.Context(), typ)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, slots)
	}))

	http.HandleFunc("/ops/admin-status", instrument(obs, "admin_status", func(w http.ResponseWriter, r *http.Request) {
		memberID := r.URL.Query().Get("memberId")
		if memberID == "" {
			writeError(w, stderrors.NewValidationError("memberId is required"))
			return
		}
		status, err := resolver.ResolveAdminStatus(r.Context(), memberID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"adminStatus": status})
	}))

	log.Info("ops handlers registered", map[string]interface{}{
		"endpoints": []string{"/ops/dispatch", "/ops/tick", "/ops/promotions", "/ops/admin-status"},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case stderrors.HasCode(err, stderrors.ErrCodeValidation):
		status = http.StatusBadRequest
	case stderrors.HasCode(err, stderrors.ErrCodePermissionDenied):
		status = http.StatusForbidden
	case stderrors.HasCode(err, stderrors.ErrCodeNotFound):
		status = http.StatusNotFound
	case stderrors.HasCode(err, stderrors.ErrCodeInvariantViolation):
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	var stdErr *stderrors.StandardError
	if e, ok := err.(*stderrors.StandardError); ok {
		stdErr = e
	} else {
		stdErr = stderrors.NewStoreFailureError("request", err)
	}
	json.NewEncoder(w).Encode(stdErr)
}
