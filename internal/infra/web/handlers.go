package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"signup-code-service/internal/domain"
	"signup-code-service/internal/domain/model"
	"signup-code-service/internal/usecase"
)

var validate = validator.New()

type adminCtxKey string

const ctxAdminSubject adminCtxKey = "admin_subject"

func withAdminSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxAdminSubject, sub)
}

func adminSubject(ctx context.Context) string {
	if v, ok := ctx.Value(ctxAdminSubject).(string); ok && v != "" {
		return v
	}
	return "admin"
}

// signupCodeDTO is the canonical wire shape of a code record.
type signupCodeDTO struct {
	Code          string     `json:"code"`
	MaxUsages     int        `json:"maxUsages"`
	CurrentUsages int        `json:"currentUsages"`
	IsActive      bool       `json:"isActive"`
	CreatedBy     string     `json:"createdBy"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toDTO(c *model.SignupCode) signupCodeDTO {
	return signupCodeDTO{
		Code:          c.Code,
		MaxUsages:     c.MaxUsages,
		CurrentUsages: c.CurrentUsages,
		IsActive:      c.IsActive,
		CreatedBy:     c.CreatedBy,
		ExpiresAt:     c.ExpiresAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type generateRequest struct {
	MaxUsages int        `json:"maxUsages" validate:"required,min=1,max=10000"`
	ExpiresAt *time.Time `json:"expiresAt" validate:"omitempty"`
}

func codesGenerateHandler(lifeUC *usecase.LifecycleUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		code, err := lifeUC.Generate(ctx, req.MaxUsages, adminSubject(ctx), req.ExpiresAt)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, "Invalid arguments", http.StatusBadRequest)
			case errors.Is(err, domain.ErrCodeGenerationExhausted):
				http.Error(w, "Could not generate a unique code", http.StatusConflict)
			default:
				http.Error(w, "Failed to generate code", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusCreated, toDTO(code))
	}
}

// optionalTime distinguishes an absent field from an explicit null, so a
// PATCH can clear expiresAt the way the admin API always has.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

type updateRequest struct {
	MaxUsages *int         `json:"maxUsages" validate:"omitempty,min=1,max=10000"`
	IsActive  *bool        `json:"isActive"`
	ExpiresAt optionalTime `json:"expiresAt"`
}

func codeUpdateHandler(lifeUC *usecase.LifecycleUseCase, code string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req updateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		patch := model.AdminPatch{
			MaxUsages: req.MaxUsages,
			IsActive:  req.IsActive,
		}
		if req.ExpiresAt.Set {
			if req.ExpiresAt.Value == nil {
				patch.ClearExpiresAt = true
			} else {
				patch.ExpiresAt = req.ExpiresAt.Value
			}
		}

		updated, err := lifeUC.AdminUpdate(ctx, code, patch)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrCodeNotFound):
				http.Error(w, "Code not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, "Invalid arguments", http.StatusBadRequest)
			default:
				http.Error(w, "Failed to update code", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusOK, toDTO(updated))
	}
}

func codeStatusHandler(lifeUC *usecase.LifecycleUseCase, code string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := lifeUC.GetStatus(r.Context(), code)
		if err != nil {
			if errors.Is(err, domain.ErrCodeNotFound) {
				http.Error(w, "Code not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to fetch code", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toDTO(record))
	}
}

func codesListHandler(lifeUC *usecase.LifecycleUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		codes, err := lifeUC.List(r.Context(), offset, limit)
		if err != nil {
			http.Error(w, "Failed to list codes", http.StatusInternalServerError)
			return
		}
		out := make([]signupCodeDTO, 0, len(codes))
		for _, c := range codes {
			out = append(out, toDTO(c))
		}
		writeJSON(w, http.StatusOK, out)
	}
}
