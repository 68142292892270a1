package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ogurasousui/user-service/internal/core/registration"
	"github.com/ogurasousui/user-service/internal/core/user"
	"go.uber.org/zap"
)

// UserHandler はユーザー API のハンドラーです。
type UserHandler struct {
	users     user.UseCase
	registrar registration.UseCase
	logger    *zap.Logger
}

// NewUserHandler は UserHandler を生成します。
func NewUserHandler(users user.UseCase, registrar registration.UseCase, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: users, registrar: registrar, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone"`
	Provider string `json:"provider" validate:"omitempty,oneof=LOCAL GOOGLE KAKAO NAVER local google kakao naver"`
}

type updateRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=100"`
	Phone *string `json:"phone"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Register は POST /api/users を処理します。
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	provider, err := user.ParseProvider(req.Provider)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.registrar.Register(r.Context(), registration.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
		Provider: provider,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, userResponse{
		ID:    created.ID,
		Email: created.Email.String(),
		Name:  created.Name,
		Phone: created.Phone.String(),
	})
}

// GetByID は GET /api/users/{userId} を処理します。
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		h.writeError(w, r, user.ErrInvalidID)
		return
	}

	view, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, userResponse{
		ID:    view.ID,
		Email: view.Email,
		Name:  view.Name,
		Phone: view.Phone,
	})
}

// DeleteMe は DELETE /api/users/me を処理します。
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, codeUnauth, "authentication required", nil)
		return
	}

	if err := h.users.DeleteByID(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil)
}

// UpdateMe は PATCH /api/users/me を処理します。
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, codeUnauth, "authentication required", nil)
		return
	}

	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.users.Update(r.Context(), user.UpdateUserInput{ID: id, Name: req.Name, Phone: req.Phone}); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil)
}

func (h *UserHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeFailure(w, http.StatusBadRequest, codeValidation, "invalid request body", nil)
		return false
	}

	if details := validateStruct(dst); details != nil {
		writeFailure(w, http.StatusBadRequest, codeValidation, "validation failed", details)
		return false
	}
	return true
}

func (h *UserHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	he := toHTTPError(err)
	switch {
	case he.status >= http.StatusInternalServerError && !errors.Is(err, registration.ErrExternalService):
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	case he.status == http.StatusBadGateway:
		h.logger.Warn("registration aborted by external service", zap.Error(err))
	}
	writeFailure(w, he.status, he.code, he.message, nil)
}
