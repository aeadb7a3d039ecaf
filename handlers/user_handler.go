package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"photohunter/middleware"
	"photohunter/models"
	"photohunter/services"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := mustUser(r, h.userService)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	profile, err := h.userService.Profile(r.Context(), user)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, profile)
}

func (h *UserHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	h.updateFavorite(w, r, h.userService.AddFavorite)
}

func (h *UserHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.updateFavorite(w, r, h.userService.RemoveFavorite)
}

func (h *UserHandler) updateFavorite(w http.ResponseWriter, r *http.Request, update func(context.Context, models.User, string) (models.ProfileDto, error)) {
	user, err := mustUser(r, h.userService)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	profile, err := update(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, profile)
}
