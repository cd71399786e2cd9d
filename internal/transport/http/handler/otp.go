package handler

import (
	"context"
	"net/http"

	"github.com/go-accounts-api/internal/domain"
	"github.com/go-accounts-api/internal/pkg/validate"
)

type otpService interface {
	Request(ctx context.Context, email string) error
	Verify(email, code string) error
}

// OTPHandler serves the signup email-verification endpoints.
type OTPHandler struct {
	svc otpService
}

func NewOTPHandler(svc otpService) *OTPHandler { return &OTPHandler{svc: svc} }

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.SendOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Request(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "otp sent")
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Verify(req.Email, req.OTP); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "otp verified")
}
