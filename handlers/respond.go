package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
	"photohunter/middleware"
	"photohunter/models"
	"photohunter/services"
	"photohunter/utils/errors"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("Failed to write response: %v", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.NewAPIError(errors.ErrInvalidInput.Code, errors.ErrInvalidInput.Message, errors.ErrInvalidInput.Status, err.Error())
	}
	return nil
}

// requestUser returns the account behind the request's bearer token, or nil
// for anonymous requests.
func requestUser(r *http.Request, users *services.UserService) (*models.User, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil, nil
	}
	u, err := users.CurrentUser(r.Context(), claims.Subject)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// mustUser is requestUser for routes behind RequireAuth.
func mustUser(r *http.Request, users *services.UserService) (models.User, error) {
	u, err := requestUser(r, users)
	if err != nil {
		return models.User{}, err
	}
	if u == nil {
		return models.User{}, errors.ErrUnauthorized
	}
	return *u, nil
}
