package models

import "time"

const RoleUser = "User"

type User struct {
	ID                  string    `json:"id" bson:"_id,omitempty"`
	Email               string    `json:"email" bson:"email"`
	PasswordHash        string    `json:"-" bson:"password_hash,omitempty"`
	FullName            string    `json:"full_name" bson:"full_name"`
	AvatarURL           string    `json:"avatar_url" bson:"avatar_url"`
	Role                string    `json:"role" bson:"role"`
	Enabled             bool      `json:"enabled" bson:"enabled"`
	GoogleAccessToken   string    `json:"-" bson:"google_access_token,omitempty"`
	GoogleRefreshToken  string    `json:"-" bson:"google_refresh_token,omitempty"`
	FavoriteLocationIDs []string  `json:"favorite_location_ids" bson:"favorite_location_ids"`
	CreatedAt           time.Time `json:"created_at" bson:"created_at"`
}

// HasFavorite reports whether locationID is in the user's favorites.
func (u *User) HasFavorite(locationID string) bool {
	for _, id := range u.FavoriteLocationIDs {
		if id == locationID {
			return true
		}
	}
	return false
}

// GoogleProfile is the subset of the Google userinfo response we rely on.
type GoogleProfile struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	VerifiedEmail bool   `json:"verified_email"`
}

type GoogleTokens struct {
	AccessToken  string
	RefreshToken string
}
