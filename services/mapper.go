package services

import (
	"context"
	"errors"

	"photohunter/models"
	"photohunter/repository"
)

func ToUserDto(u models.User) models.UserDto {
	return models.UserDto{FullName: u.FullName, AvatarURL: u.AvatarURL}
}

// ToLocationDto converts l for viewer, who may be nil for anonymous
// requests. owner may be nil when the location has no owner.
func ToLocationDto(l models.Location, owner, viewer *models.User) models.LocationDto {
	dto := models.LocationDto{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Lat:         l.Lat,
		Lng:         l.Lng,
	}
	if l.Thumbnail != nil {
		p := *l.Thumbnail
		dto.Thumbnail = &p
	}
	if owner != nil {
		o := ToUserDto(*owner)
		dto.Owner = &o
	}
	if viewer != nil {
		dto.IsOwner = l.OwnerID != "" && l.OwnerID == viewer.ID
		dto.IsFavorite = viewer.HasFavorite(l.ID)
	}
	return dto
}

// mapLocations converts locs, loading each distinct owner once.
func mapLocations(ctx context.Context, users repository.UserRepository, locs []models.Location, viewer *models.User) ([]models.LocationDto, error) {
	owners := map[string]*models.User{}
	out := make([]models.LocationDto, 0, len(locs))
	for _, l := range locs {
		owner, seen := owners[l.OwnerID]
		if !seen && l.OwnerID != "" {
			u, err := users.FindByID(ctx, l.OwnerID)
			switch {
			case err == nil:
				owner = &u
			case errors.Is(err, repository.ErrNotFound):
			default:
				return nil, err
			}
			owners[l.OwnerID] = owner
		}
		out = append(out, ToLocationDto(l, owner, viewer))
	}
	return out, nil
}
