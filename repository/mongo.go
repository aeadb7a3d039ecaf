package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"photohunter/models"
)

// MongoStore gives access to the users, locations and pictures collections.
type MongoStore struct {
	client    *mongo.Client
	users     *mongo.Collection
	locations *mongo.Collection
	pictures  *mongo.Collection
}

// ConnectMongo dials uri, pings the server and makes sure the indexes exist.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("while connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("while pinging MongoDB: %w", err)
	}
	glog.Infof("Connected to MongoDB database %q", database)

	db := client.Database(database)
	s := &MongoStore{
		client:    client,
		users:     db.Collection("users"),
		locations: db.Collection("locations"),
		pictures:  db.Collection("pictures"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("while creating unique index on users.email: %w", err)
	}

	_, err = s.locations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "lat", Value: 1}, {Key: "lng", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("while creating location indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Users() UserRepository { return mongoUsers{s.users} }
func (s *MongoStore) Locations() LocationRepository { return mongoLocations{s.locations} }
func (s *MongoStore) Pictures() PictureRepository { return mongoPictures{s.pictures} }

type mongoUsers struct{ c *mongo.Collection }

func (r mongoUsers) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.FavoriteLocationIDs == nil {
		u.FavoriteLocationIDs = []string{}
	}
	u.Email = strings.ToLower(u.Email)

	if _, err := r.c.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("while inserting user: %w", err)
	}
	return nil
}

func (r mongoUsers) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var u models.User
	if err := r.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("while loading user: %w", err)
	}
	return u, nil
}

func (r mongoUsers) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r mongoUsers) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r mongoUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := r.c.CountDocuments(ctx, bson.M{"email": strings.ToLower(email)}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("while counting users: %w", err)
	}
	return n > 0, nil
}

func (r mongoUsers) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("while updating user %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r mongoUsers) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"enabled": enabled}})
}

func (r mongoUsers) AddFavorite(ctx context.Context, userID, locationID string) error {
	return r.updateOne(ctx, userID, bson.M{"$addToSet": bson.M{"favorite_location_ids": locationID}})
}

func (r mongoUsers) RemoveFavorite(ctx context.Context, userID, locationID string) error {
	return r.updateOne(ctx, userID, bson.M{"$pull": bson.M{"favorite_location_ids": locationID}})
}

func (r mongoUsers) DeleteAll(ctx context.Context) error {
	_, err := r.c.DeleteMany(ctx, bson.M{})
	return err
}

type mongoLocations struct{ c *mongo.Collection }

func (r mongoLocations) Create(ctx context.Context, l *models.Location) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if _, err := r.c.InsertOne(ctx, l); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("while inserting location: %w", err)
	}
	return nil
}

func (r mongoLocations) FindByID(ctx context.Context, id string) (models.Location, error) {
	var l models.Location
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Location{}, ErrNotFound
		}
		return models.Location{}, fmt.Errorf("while loading location %s: %w", id, err)
	}
	return l, nil
}

func (r mongoLocations) find(ctx context.Context, filter bson.M) ([]models.Location, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("while querying locations: %w", err)
	}
	defer cursor.Close(ctx)

	locations := []models.Location{}
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, fmt.Errorf("while decoding locations: %w", err)
	}
	return locations, nil
}

func (r mongoLocations) FindAll(ctx context.Context) ([]models.Location, error) {
	return r.find(ctx, bson.M{})
}

func (r mongoLocations) FindByIDs(ctx context.Context, ids []string) ([]models.Location, error) {
	if len(ids) == 0 {
		return []models.Location{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r mongoLocations) FindByOwner(ctx context.Context, ownerID string) ([]models.Location, error) {
	return r.find(ctx, bson.M{"owner_id": ownerID})
}

func (r mongoLocations) FindInBox(ctx context.Context, box models.BoundingBox) ([]models.Location, error) {
	return r.find(ctx, boxFilter(box))
}

func boxFilter(box models.BoundingBox) bson.M {
	filter := bson.M{"lat": bson.M{"$gte": box.MinLat(), "$lte": box.MaxLat()}}

	ranges := box.LngRanges()
	switch len(ranges) {
	case 0:
	case 1:
		filter["lng"] = bson.M{"$gte": ranges[0][0], "$lte": ranges[0][1]}
	default:
		var or bson.A
		for _, rg := range ranges {
			or = append(or, bson.M{"lng": bson.M{"$gte": rg[0], "$lte": rg[1]}})
		}
		filter["$or"] = or
	}
	return filter
}

func (r mongoLocations) DeleteAll(ctx context.Context) error {
	_, err := r.c.DeleteMany(ctx, bson.M{})
	return err
}

type mongoPictures struct{ c *mongo.Collection }

func (r mongoPictures) Create(ctx context.Context, p *models.Picture) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, err := r.c.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("while inserting picture: %w", err)
	}
	return nil
}

func (r mongoPictures) Delete(ctx context.Context, id string) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("while deleting picture %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
