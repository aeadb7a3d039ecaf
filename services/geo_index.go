package services

import (
	"context"
	"errors"
	"math"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"photohunter/models"
	"photohunter/repository"
)

const locationsGeoKey = "locations:geo"

// Redis only stores coordinates between these latitudes.
const redisMaxLat = 85.05112878

// ErrBoxNotIndexable is returned for boxes the index cannot answer, such as
// boxes spanning every longitude or reaching the poles.
var ErrBoxNotIndexable = errors.New("bounding box cannot be answered by the geo index")

// GeoIndex keeps location coordinates for box lookups. Results are
// candidates; callers recheck them against the exact box.
type GeoIndex interface {
	Add(ctx context.Context, l models.Location) error
	SearchBox(ctx context.Context, box models.BoundingBox) ([]string, error)
}

type RedisGeoIndex struct {
	client *redis.Client
}

func NewRedisGeoIndex(client *redis.Client) *RedisGeoIndex {
	return &RedisGeoIndex{client: client}
}

func (g *RedisGeoIndex) Add(ctx context.Context, l models.Location) error {
	return g.client.GeoAdd(ctx, locationsGeoKey, &redis.GeoLocation{
		Name:      l.ID,
		Longitude: l.Lng,
		Latitude:  l.Lat,
	}).Err()
}

func (g *RedisGeoIndex) SearchBox(ctx context.Context, box models.BoundingBox) ([]string, error) {
	if box.DeltaLng >= 180 || box.MaxLat() > redisMaxLat || box.MinLat() < -redisMaxLat {
		return nil, ErrBoxNotIndexable
	}
	// Pad the search so Redis' spherical box never drops a point the
	// degree box keeps.
	const pad = 1.1
	width := math.Max(box.WidthKm()*pad, 1)
	height := math.Max(box.HeightKm()*pad, 1)

	return g.client.GeoSearch(ctx, locationsGeoKey, &redis.GeoSearchQuery{
		Longitude: box.CenterLng,
		Latitude:  box.CenterLat,
		BoxWidth:  width,
		BoxHeight: height,
		BoxUnit:   "km",
	}).Result()
}

// Rebuild replaces the index content with every stored location.
func (g *RedisGeoIndex) Rebuild(ctx context.Context, locations repository.LocationRepository) error {
	all, err := locations.FindAll(ctx)
	if err != nil {
		return err
	}
	if err := g.client.Del(ctx, locationsGeoKey).Err(); err != nil {
		return err
	}
	glog.Infof("Seeding %d locations into Redis", len(all))

	members := make([]*redis.GeoLocation, 0, len(all))
	for _, l := range all {
		if math.Abs(l.Lat) > redisMaxLat {
			glog.Warningf("Location %s at lat=%f cannot be indexed", l.ID, l.Lat)
			continue
		}
		members = append(members, &redis.GeoLocation{Name: l.ID, Longitude: l.Lng, Latitude: l.Lat})
	}
	if len(members) == 0 {
		return nil
	}
	return g.client.GeoAdd(ctx, locationsGeoKey, members...).Err()
}
