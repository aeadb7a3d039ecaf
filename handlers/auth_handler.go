package handlers

import (
	"net/http"

	"photohunter/middleware"
	"photohunter/models"
	"photohunter/services"
)

type AuthHandler struct {
	userService *services.UserService
}

func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

func (h *AuthHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var input models.UserCreationDto
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}

	user, err := h.userService.Register(r.Context(), input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, user)
}

func (h *AuthHandler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var input models.UserLoginDto
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}

	token, err := h.userService.Login(r.Context(), input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, token)
}

func (h *AuthHandler) GoogleAuthURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.userService.GoogleAuthURL()
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, url)
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var input models.GoogleCodeDto
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}

	token, err := h.userService.LoginWithGoogleCode(r.Context(), input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, token)
}

func (h *AuthHandler) SendVerification(w http.ResponseWriter, r *http.Request) {
	var input models.SendEmailVerificationDto
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}

	if err := h.userService.SendEmailVerification(r.Context(), input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, map[string]string{"message": "If the account exists and is not verified, a link was sent"})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, user)
}
