package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"photohunter/models"
)

// MemoryStore keeps users, locations and pictures in process memory. It
// backs STORE=memory and the unit tests.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]models.User
	locations map[string]models.Location
	pictures  map[string]models.Picture
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     map[string]models.User{},
		locations: map[string]models.Location{},
		pictures:  map[string]models.Picture{},
	}
}

func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }
func (s *MemoryStore) Locations() LocationRepository { return memoryLocations{s} }
func (s *MemoryStore) Pictures() PictureRepository { return memoryPictures{s} }

type memoryUsers struct{ s *MemoryStore }

func copyUser(u models.User) models.User {
	u.FavoriteLocationIDs = append([]string(nil), u.FavoriteLocationIDs...)
	return u
}

func (r memoryUsers) Create(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if _, ok := r.s.users[u.ID]; ok {
		return ErrDuplicate
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.FavoriteLocationIDs == nil {
		u.FavoriteLocationIDs = []string{}
	}
	r.s.users[u.ID] = copyUser(*u)
	return nil
}

func (r memoryUsers) FindByID(_ context.Context, id string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return copyUser(u), nil
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return models.User{}, ErrNotFound
}

func (r memoryUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r memoryUsers) update(id string, fn func(*models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return ErrNotFound
	}
	u = copyUser(u)
	fn(&u)
	r.s.users[id] = u
	return nil
}

func (r memoryUsers) SetEnabled(_ context.Context, id string, enabled bool) error {
	return r.update(id, func(u *models.User) { u.Enabled = enabled })
}

func (r memoryUsers) AddFavorite(_ context.Context, userID, locationID string) error {
	return r.update(userID, func(u *models.User) {
		if !u.HasFavorite(locationID) {
			u.FavoriteLocationIDs = append(u.FavoriteLocationIDs, locationID)
		}
	})
}

func (r memoryUsers) RemoveFavorite(_ context.Context, userID, locationID string) error {
	return r.update(userID, func(u *models.User) {
		kept := u.FavoriteLocationIDs[:0]
		for _, id := range u.FavoriteLocationIDs {
			if id != locationID {
				kept = append(kept, id)
			}
		}
		u.FavoriteLocationIDs = kept
	})
}

func (r memoryUsers) DeleteAll(context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users = map[string]models.User{}
	return nil
}

type memoryLocations struct{ s *MemoryStore }

func copyLocation(l models.Location) models.Location {
	if l.Thumbnail != nil {
		p := *l.Thumbnail
		l.Thumbnail = &p
	}
	return l
}

func (r memoryLocations) Create(_ context.Context, l *models.Location) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if _, ok := r.s.locations[l.ID]; ok {
		return ErrDuplicate
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	r.s.locations[l.ID] = copyLocation(*l)
	return nil
}

func (r memoryLocations) FindByID(_ context.Context, id string) (models.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.locations[id]
	if !ok {
		return models.Location{}, ErrNotFound
	}
	return copyLocation(l), nil
}

// filter returns matching locations ordered by creation time, then ID.
func (r memoryLocations) filter(keep func(models.Location) bool) []models.Location {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.Location{}
	for _, l := range r.s.locations {
		if keep(l) {
			out = append(out, copyLocation(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r memoryLocations) FindAll(context.Context) ([]models.Location, error) {
	return r.filter(func(models.Location) bool { return true }), nil
}

func (r memoryLocations) FindByIDs(_ context.Context, ids []string) ([]models.Location, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	return r.filter(func(l models.Location) bool { return wanted[l.ID] }), nil
}

func (r memoryLocations) FindByOwner(_ context.Context, ownerID string) ([]models.Location, error) {
	return r.filter(func(l models.Location) bool { return ownerID != "" && l.OwnerID == ownerID }), nil
}

func (r memoryLocations) FindInBox(_ context.Context, box models.BoundingBox) ([]models.Location, error) {
	return r.filter(func(l models.Location) bool { return box.Contains(l.Lat, l.Lng) }), nil
}

func (r memoryLocations) DeleteAll(context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.locations = map[string]models.Location{}
	return nil
}

type memoryPictures struct{ s *MemoryStore }

func (r memoryPictures) Create(_ context.Context, p *models.Picture) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, ok := r.s.pictures[p.ID]; ok {
		return ErrDuplicate
	}
	r.s.pictures[p.ID] = *p
	return nil
}

func (r memoryPictures) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.pictures[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.pictures, id)
	return nil
}

// PictureCount is used by tests to check compensation after failed writes.
func (s *MemoryStore) PictureCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pictures)
}
