package models

// Request bodies.

type UserCreationDto struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	Name     string `json:"name" validate:"required,max=200"`
}

type UserLoginDto struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LocationCreationDto struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Lat         float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng         float64 `json:"lng" validate:"gte=-180,lte=180"`
}

type SendEmailVerificationDto struct {
	Email string `json:"email" validate:"required"`
}

type GoogleCodeDto struct {
	Code string `json:"code" validate:"required"`
}

// GeoQuery is the optional coordinate filter of a location listing.
type GeoQuery struct {
	Lat float64
	Lng float64
}

// Responses.

type LoginJWTDto struct {
	JWT string `json:"jwt"`
}

type UserDto struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

type LocationDto struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Thumbnail   *Picture `json:"thumbnail,omitempty"`
	Owner       *UserDto `json:"owner,omitempty"`
	IsOwner     bool     `json:"is_owner"`
	IsFavorite  bool     `json:"is_favorite"`
}

type ProfileDto struct {
	User      UserDto       `json:"user"`
	Locations []LocationDto `json:"locations"`
	Favorites []LocationDto `json:"favorites"`
}

type AuthURLDto struct {
	URL string `json:"url"`
}
