// Package models defines the documents persisted by the clipriver datastore.
package models

import "time"

// User is a channel account. PasswordHash is retained on the stored document
// and stripped before the record is returned to a client.
type User struct {
	ID                 string    `json:"_id" bson:"_id"`
	ChannelName        string    `json:"channelName" bson:"channelName"`
	Email              string    `json:"email" bson:"email"`
	Phone              string    `json:"phone" bson:"phone"`
	PasswordHash       string    `json:"password,omitempty" bson:"password"`
	LogoURL            string    `json:"logoUrl" bson:"logoUrl"`
	LogoID             string    `json:"logoId" bson:"logoId"`
	Subscribers        int64     `json:"subscribers" bson:"subscribers"`
	SubscribedChannels []string  `json:"subscribedChannels" bson:"subscribedChannels"`
	CreatedAt          time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt" bson:"updatedAt"`
}

// WithoutPassword returns a copy safe to serialise in API responses.
func (u User) WithoutPassword() User {
	u.PasswordHash = ""
	return u
}

// IsSubscribedTo reports whether channelID is in the user's subscription set.
func (u User) IsSubscribedTo(channelID string) bool {
	for _, id := range u.SubscribedChannels {
		if id == channelID {
			return true
		}
	}
	return false
}

// Video is an uploaded video document. VideoID and ThumbnailID are the media
// relay deletion handles for the two remote assets; either may be empty when
// the asset was never provisioned. ViewedBy, LikedBy, and DislikedBy are
// de-duplicated membership sets; a user id never sits in LikedBy and
// DislikedBy at the same time.
type Video struct {
	ID           string    `json:"_id" bson:"_id"`
	Title        string    `json:"title" bson:"title"`
	Description  string    `json:"description" bson:"description"`
	UserID       string    `json:"user_id" bson:"user_id"`
	VideoURL     string    `json:"videoUrl" bson:"videoUrl"`
	VideoID      string    `json:"videoId" bson:"videoId"`
	ThumbnailURL string    `json:"thumbnailUrl" bson:"thumbnailUrl"`
	ThumbnailID  string    `json:"thumbnailId" bson:"thumbnailId"`
	Category     string    `json:"category" bson:"category"`
	Tags         []string  `json:"tags" bson:"tags"`
	ViewedBy     []string  `json:"viewedBy" bson:"viewedBy"`
	LikedBy      []string  `json:"likedBy" bson:"likedBy"`
	DislikedBy   []string  `json:"dislikedBy" bson:"dislikedBy"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Comment is a comment on a video, owned by the posting user.
type Comment struct {
	ID          string    `json:"_id" bson:"_id"`
	VideoID     string    `json:"video_id" bson:"video_id"`
	UserID      string    `json:"user_id" bson:"user_id"`
	CommentText string    `json:"commentText" bson:"commentText"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CommentWithAuthor is the list-by-video projection: the comment plus the
// author's public channel identity. It is the only cross-collection join in
// the system.
type CommentWithAuthor struct {
	Comment `bson:",inline"`
	Author  CommentAuthor `json:"user" bson:"user"`
}

// CommentAuthor is the subset of the owning user exposed on comment listings.
type CommentAuthor struct {
	ChannelName string `json:"channelName" bson:"channelName"`
	LogoURL     string `json:"logoUrl" bson:"logoUrl"`
}
