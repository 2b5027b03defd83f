package accountshttp

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type createAdminRequest struct {
	Phone string `json:"phone" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

type createAdminPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

type adminUserResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Phone   string `json:"phone"`
	Name    string `json:"name"`
}

func (s *Service) handleAdminUserPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLAdmin) {
		tooMany(w)
		return
	}
	var req createAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		badRequest(w, "phone and name are required")
		return
	}

	p, err := s.svc.CreateAdminUser(r.Context(), CallerID(r.Context()), req.Phone, req.Name)
	if err != nil {
		s.log.Warn("create admin failed", zap.String("caller", CallerID(r.Context())), zap.Error(err))
		writeCoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, adminUserResponse{Success: true, ID: p.ID, Phone: p.Phone, Name: p.Name})
}

func (s *Service) handleAdminUserPasswordPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLAdmin) {
		tooMany(w)
		return
	}
	var req createAdminPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		badRequest(w, "email, password, phone and name are required")
		return
	}

	p, err := s.svc.CreateAdminUserWithPassword(r.Context(), CallerID(r.Context()), req.Email, req.Password, req.Phone, req.Name)
	if err != nil {
		s.log.Warn("create admin with password failed", zap.String("caller", CallerID(r.Context())), zap.Error(err))
		writeCoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, adminUserResponse{Success: true, ID: p.ID, Phone: p.Phone, Name: p.Name})
}
