package handler

import (
	"net/http"

	"github.com/go-accounts-api/internal/application/user"
	"github.com/go-accounts-api/internal/domain"
	"github.com/go-accounts-api/internal/transport/http/middleware"
)

// UserHandler serves the account endpoints mounted under /api/users.
type UserHandler struct {
	svc     user.Service
	cookies CookieConfig
}

func NewUserHandler(svc user.Service, cookies CookieConfig) *UserHandler {
	return &UserHandler{svc: svc, cookies: cookies}
}

// Signup accepts JSON or a form. Only forms can carry avatar and coverImage files.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var (
		req     domain.SignupRequest
		uploads []domain.Upload
	)
	if isForm(r) {
		ups, closeFiles, err := parseForm(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer closeFiles()
		uploads = ups
		req = domain.SignupRequest{
			FullName: r.PostFormValue("fullName"),
			Email:    r.PostFormValue("email"),
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
			OTP:      r.PostFormValue("otp"),
		}
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.svc.Signup(r.Context(), req, uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cookies.setSession(w, res.AccessToken, res.RefreshToken)
	writeJSON(w, http.StatusOK, UserEnvelope{User: res.User})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cookies.setSession(w, res.AccessToken, res.RefreshToken)
	writeJSON(w, http.StatusOK, UserEnvelope{User: res.User})
}

func (h *UserHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.clearSession(w)
	writeMessage(w, "logged out")
}

// RefreshToken reads the refresh token from its cookie, or from a JSON body
// for clients that do not keep cookies.
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(RefreshCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		token = body.RefreshToken
	}
	res, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cookies.setSession(w, res.AccessToken, res.RefreshToken)
	writeJSON(w, http.StatusOK, UserEnvelope{User: res.User})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrTokenMissing)
		return
	}
	u, err := h.svc.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: u})
}

// Update applies only the fields that were submitted. It accepts JSON,
// urlencoded or multipart bodies.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrTokenMissing)
		return
	}
	var (
		req     domain.UpdateProfileRequest
		uploads []domain.Upload
	)
	if isForm(r) {
		ups, closeFiles, err := parseForm(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer closeFiles()
		uploads = ups
		req = domain.UpdateProfileRequest{
			FullName: formValue(r.PostForm, "fullName"),
			Bio:      formValue(r.PostForm, "bio"),
			Location: formValue(r.PostForm, "location"),
			Website:  formValue(r.PostForm, "website"),
		}
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.svc.UpdateProfile(r.Context(), userID, req, uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: u})
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrTokenMissing)
		return
	}
	var req domain.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), userID, req); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "password changed")
}
