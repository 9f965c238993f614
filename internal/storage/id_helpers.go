package storage

import "go.mongodb.org/mongo-driver/bson/primitive"

// newID returns a fresh document id. ObjectID hex keeps ids sortable by
// creation time and identical in shape across both drivers.
func newID() string {
	return primitive.NewObjectID().Hex()
}
