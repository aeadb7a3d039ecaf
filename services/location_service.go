package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang/glog"
	"photohunter/models"
	"photohunter/repository"
	apierrors "photohunter/utils/errors"
)

var ErrUploadsUnavailable = apierrors.NewAPIError("UPLOADS_UNAVAILABLE", "Image uploads are not configured", http.StatusServiceUnavailable)

type LocationServiceDeps struct {
	Locations repository.LocationRepository
	Pictures  repository.PictureRepository
	Users     repository.UserRepository
	// Images may be nil, which rejects uploads.
	Images ImageHost
	// Geo may be nil; box queries then go to the repository.
	Geo GeoIndex
	// BoxHalfSideKm is the half side of the square searched around a
	// query point.
	BoxHalfSideKm float64
}

type LocationService struct {
	locations repository.LocationRepository
	pictures  repository.PictureRepository
	users     repository.UserRepository
	images    ImageHost
	geo       GeoIndex
	boxKm     float64
}

func NewLocationService(deps LocationServiceDeps) *LocationService {
	return &LocationService{
		locations: deps.Locations,
		pictures:  deps.Pictures,
		users:     deps.Users,
		images:    deps.Images,
		geo:       deps.Geo,
		boxKm:     deps.BoxHalfSideKm,
	}
}

// Create stores a location owned by owner, which is nil for anonymous
// requests. The upload, when present, becomes the thumbnail.
func (s *LocationService) Create(ctx context.Context, owner *models.User, dto models.LocationCreationDto, upload *Upload) (models.LocationDto, error) {
	if err := validateStruct(dto); err != nil {
		return models.LocationDto{}, err
	}
	if upload != nil && s.images == nil {
		return models.LocationDto{}, ErrUploadsUnavailable
	}

	location := models.Location{
		Title:       dto.Title,
		Description: dto.Description,
		Lat:         dto.Lat,
		Lng:         dto.Lng,
	}
	if owner != nil {
		location.OwnerID = owner.ID
	}

	var picture *models.Picture
	if upload != nil {
		p, err := s.images.UploadImage(ctx, *upload)
		if err != nil {
			return models.LocationDto{}, apierrors.Wrap(err, "UPLOAD_FAILED", "Failed to store image", http.StatusBadGateway)
		}
		if err := s.pictures.Create(ctx, &p); err != nil {
			s.discardImage(ctx, p, false)
			return models.LocationDto{}, internalError(err)
		}
		picture = &p
		location.Thumbnail = &p
	}

	if err := s.locations.Create(ctx, &location); err != nil {
		if picture != nil {
			s.discardImage(ctx, *picture, true)
		}
		return models.LocationDto{}, internalError(err)
	}
	glog.V(1).Infof("Created location %s at lat=%f, lng=%f", location.ID, location.Lat, location.Lng)

	if s.geo != nil {
		if err := s.geo.Add(ctx, location); err != nil {
			glog.Warningf("Failed to index location %s: %v", location.ID, err)
		}
	}
	return ToLocationDto(location, owner, owner), nil
}

// discardImage undoes an upload whose location could not be stored.
// Failures are logged; the caller reports the original error.
func (s *LocationService) discardImage(ctx context.Context, p models.Picture, stored bool) {
	ctx = context.WithoutCancel(ctx)
	if stored {
		if err := s.pictures.Delete(ctx, p.ID); err != nil {
			glog.Errorf("Failed to delete picture record %s: %v", p.ID, err)
		}
	}
	if err := s.images.DeleteImage(ctx, p.ID); err != nil {
		glog.Errorf("Failed to delete image %s: %v", p.ID, err)
	}
}

// List returns every location, or the ones in the box around q when q is
// set.
func (s *LocationService) List(ctx context.Context, viewer *models.User, q *models.GeoQuery) ([]models.LocationDto, error) {
	var (
		locations []models.Location
		err       error
	)
	if q == nil {
		locations, err = s.locations.FindAll(ctx)
	} else {
		// Written so that NaN fails the check.
		if !(q.Lat >= -90 && q.Lat <= 90) || !(q.Lng >= -180 && q.Lng <= 180) {
			return nil, apierrors.Validation("lat must be in [-90, 90] and lng in [-180, 180]")
		}
		locations, err = s.inBox(ctx, models.NewBoundingBox(q.Lat, q.Lng, s.boxKm))
	}
	if err != nil {
		return nil, internalError(err)
	}

	dtos, err := mapLocations(ctx, s.users, locations, viewer)
	if err != nil {
		return nil, internalError(err)
	}
	return dtos, nil
}

func (s *LocationService) inBox(ctx context.Context, box models.BoundingBox) ([]models.Location, error) {
	if s.geo == nil {
		return s.locations.FindInBox(ctx, box)
	}

	ids, err := s.geo.SearchBox(ctx, box)
	if err != nil {
		if !errors.Is(err, ErrBoxNotIndexable) {
			glog.Warningf("Geo index search failed, querying the store: %v", err)
		}
		return s.locations.FindInBox(ctx, box)
	}
	if len(ids) == 0 {
		return []models.Location{}, nil
	}

	candidates, err := s.locations.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Location, 0, len(candidates))
	for _, l := range candidates {
		if box.Contains(l.Lat, l.Lng) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *LocationService) Get(ctx context.Context, viewer *models.User, id string) (models.LocationDto, error) {
	location, err := s.locations.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.LocationDto{}, apierrors.ErrLocationNotFound
	}
	if err != nil {
		return models.LocationDto{}, internalError(err)
	}

	dtos, err := mapLocations(ctx, s.users, []models.Location{location}, viewer)
	if err != nil {
		return models.LocationDto{}, internalError(err)
	}
	return dtos[0], nil
}
