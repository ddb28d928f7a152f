package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edurewards/edurewards-backend/api/middleware"
	"github.com/edurewards/edurewards-backend/api/responses"
	"github.com/edurewards/edurewards-backend/api/validators"
	"github.com/edurewards/edurewards-backend/internal/redemptions"
	"github.com/edurewards/edurewards-backend/pkg/enums"
	pkgerrors "github.com/edurewards/edurewards-backend/pkg/errors"
	"github.com/edurewards/edurewards-backend/pkg/logger"
	"github.com/edurewards/edurewards-backend/pkg/pagination"
)

type issueRedemptionRequest struct {
	ProductID     string `json:"product_id" validate:"required,max=128"`
	ProductName   string `json:"product_name" validate:"required,max=200"`
	CoinsRedeemed int64  `json:"coins_redeemed" validate:"min=0"`
	ExpiryDays    *int   `json:"expiry_days,omitempty" validate:"omitempty,min=1,max=365"`
}

type decodePayloadRequest struct {
	Payload string `json:"payload" validate:"required"`
}

type verifyRedemptionRequest struct {
	Payload string `json:"payload" validate:"required_without=Code"`
	Code    string `json:"code" validate:"omitempty,max=32"`
	Intent  string `json:"intent" validate:"omitempty,oneof=accept collect reject"`
	Reason  string `json:"reason" validate:"omitempty,max=500"`
}

type redemptionResponse struct {
	ID              string     `json:"id"`
	StudentID       string     `json:"student_id"`
	ProductID       string     `json:"product_id"`
	ProductName     string     `json:"product_name"`
	CoinsRedeemed   int64      `json:"coins_redeemed"`
	Timestamp       int64      `json:"timestamp"`
	ExpiryDate      int64      `json:"expiry_date"`
	RedemptionCode  string     `json:"redemption_code"`
	Status          string     `json:"status"`
	EffectiveStatus string     `json:"effective_status"`
	VerifierID      string     `json:"verifier_id,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	CollectedAt     *time.Time `json:"collected_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
}

type issuedRedemptionResponse struct {
	Redemption redemptionResponse `json:"redemption"`
	Payload    string             `json:"payload"`
}

type redemptionListResponse struct {
	Items  []redemptionResponse `json:"items"`
	Cursor string               `json:"cursor,omitempty"`
}

type decodeResponse struct {
	Valid bool                 `json:"valid"`
	Data  *redemptions.Payload `json:"data,omitempty"`
	Error string               `json:"error,omitempty"`
}

type verifyResponse struct {
	Outcome    string              `json:"outcome"`
	Intent     string              `json:"intent"`
	Status     string              `json:"status"`
	Replayed   bool                `json:"replayed"`
	Redemption *redemptionResponse `json:"redemption,omitempty"`
}

func toRedemptionResponse(record *redemptions.Record, effective enums.RedemptionStatus) redemptionResponse {
	return redemptionResponse{
		ID:              record.ID,
		StudentID:       record.StudentID,
		ProductID:       record.ProductID,
		ProductName:     record.ProductName,
		CoinsRedeemed:   record.CoinsRedeemed,
		Timestamp:       record.Timestamp,
		ExpiryDate:      record.ExpiryDate,
		RedemptionCode:  record.RedemptionCode,
		Status:          string(record.Status),
		EffectiveStatus: string(effective),
		VerifierID:      record.VerifierID,
		RejectionReason: record.RejectionReason,
		VerifiedAt:      record.VerifiedAt,
		CollectedAt:     record.CollectedAt,
		RejectedAt:      record.RejectedAt,
	}
}

// RedemptionIssue creates a pending redemption for the authenticated student.
func RedemptionIssue(svc redemptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}

		studentID := middleware.UserIDFromContext(ctx)
		if studentID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var req issueRedemptionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		issued, err := svc.Issue(ctx, redemptions.BuildInput{
			StudentID:     studentID,
			ProductID:     validators.SanitizeString(req.ProductID),
			ProductName:   validators.SanitizeString(req.ProductName),
			CoinsRedeemed: req.CoinsRedeemed,
			ExpiryDays:    req.ExpiryDays,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, issuedRedemptionResponse{
			Redemption: toRedemptionResponse(issued.Record, issued.Record.Status),
			Payload:    issued.Payload,
		})
	}
}

// RedemptionList returns a page of redemption history. Students see their own;
// teachers must name the student via ?student_id.
func RedemptionList(svc redemptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}

		studentID := middleware.UserIDFromContext(ctx)
		if enums.Role(middleware.RoleFromContext(ctx)) == enums.RoleTeacher {
			studentID = strings.TrimSpace(r.URL.Query().Get("student_id"))
			if studentID == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "student_id is required").
					WithDetails(map[string]any{"field": "student_id"}))
				return
			}
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.ListByStudent(ctx, redemptions.ListParams{
			StudentID: studentID,
			Limit:     limit,
			Cursor:    strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := redemptionListResponse{Items: make([]redemptionResponse, 0, len(page.Items)), Cursor: page.Cursor}
		for _, item := range page.Items {
			resp.Items = append(resp.Items, toRedemptionResponse(item.Record, item.EffectiveStatus))
		}
		responses.WriteSuccess(w, resp)
	}
}

// RedemptionGet returns one redemption with its effective status.
func RedemptionGet(svc redemptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}

		view, err := svc.Get(ctx, chi.URLParam(r, "redemptionId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !canRead(r, view.Record) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "redemption not found"))
			return
		}

		responses.WriteSuccess(w, toRedemptionResponse(view.Record, view.EffectiveStatus))
	}
}

// RedemptionPayload re-encodes the scannable payload for the owning student.
func RedemptionPayload(svc redemptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}

		id := chi.URLParam(r, "redemptionId")
		view, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if view.Record.StudentID != middleware.UserIDFromContext(ctx) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "redemption not found"))
			return
		}

		payload, err := svc.Payload(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"payload":          payload,
			"redemption_code":  view.Record.RedemptionCode,
			"effective_status": view.EffectiveStatus,
		})
	}
}

// VerifierDecode previews a scanned payload without touching state.
func VerifierDecode(svc redemptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}

		var req decodePayloadRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result := svc.Decode(req.Payload)
		responses.WriteSuccess(w, decodeResponse{Valid: result.Valid, Data: result.Data, Error: result.Error})
	}
}

// VerifierVerify applies the verifier's intent to a scanned payload or typed code.
func VerifierVerify(svc redemptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}

		var req verifyRedemptionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		intent, err := enums.ParseVerificationIntent(req.Intent)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid intent").
				WithDetails(map[string]any{"field": "intent"}))
			return
		}

		outcome, err := svc.Verify(ctx, redemptions.VerifyRequest{
			Payload:    req.Payload,
			Code:       req.Code,
			Intent:     intent,
			Reason:     validators.SanitizeString(req.Reason),
			VerifierID: middleware.UserIDFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !outcome.Succeeded() {
			responses.WriteError(ctx, logg, w, outcome.Err())
			return
		}

		resp := verifyResponse{
			Outcome:  string(outcome.Kind),
			Intent:   string(outcome.Intent),
			Status:   string(outcome.Status),
			Replayed: outcome.Replayed,
		}
		if outcome.Record != nil {
			view := toRedemptionResponse(outcome.Record, outcome.Status)
			resp.Redemption = &view
		}
		responses.WriteSuccess(w, resp)
	}
}

func canRead(r *http.Request, record *redemptions.Record) bool {
	if enums.Role(middleware.RoleFromContext(r.Context())) == enums.RoleTeacher {
		return true
	}
	return record.StudentID == middleware.UserIDFromContext(r.Context())
}
