package models

import "time"

type Location struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	Lat         float64   `json:"lat" bson:"lat"`
	Lng         float64   `json:"lng" bson:"lng"`
	Thumbnail   *Picture  `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	OwnerID     string    `json:"owner_id,omitempty" bson:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// Picture references an image stored by the image host.
type Picture struct {
	ID  string `json:"id" bson:"_id"`
	URL string `json:"url" bson:"url"`
}
