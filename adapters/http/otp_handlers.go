package accountshttp

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/kehilla-app/accounts/core"
)

type sendOtpRequest struct {
	Phone string `json:"phone" validate:"required"`
}

type otpResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Phone   string `json:"phone,omitempty"`
}

func (s *Service) handleOtpSendPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLOtpSend) {
		tooMany(w)
		return
	}
	var req sendOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		badRequest(w, "phone is required")
		return
	}

	if err := s.svc.RequestCode(r.Context(), req.Phone); err != nil {
		s.log.Warn("send otp failed", zap.Error(err))
		if core.IsKind(err, core.KindDeliveryFailed) {
			// The callable contract has no delivery code; report internal.
			sendErr(w, http.StatusInternalServerError, string(core.KindInternal), "could not send verification code")
			return
		}
		writeCoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, otpResponse{Success: true, Message: "verification code sent"})
}

type verifyOtpRequest struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

func (s *Service) handleOtpVerifyPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLOtpVerify) {
		tooMany(w)
		return
	}
	var req verifyOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		badRequest(w, "phone and code are required")
		return
	}

	phone, err := s.svc.VerifyCode(r.Context(), req.Phone, req.Code)
	if err != nil {
		if core.IsKind(err, core.KindInvalidCode) {
			// A mismatch is a negative result, not a transport error; the
			// record stays so the user can retry until expiry.
			writeJSON(w, http.StatusOK, otpResponse{Success: false, Message: "verification code incorrect"})
			return
		}
		s.log.Warn("verify otp failed", zap.Error(err))
		writeCoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, otpResponse{Success: true, Message: "phone verified", Phone: phone})
}
