// Package storage persists clipriver's users, videos, and comments. Two
// drivers implement the same Repository contract: the in-memory Storage used
// by tests and local development, and MongoRepository for production. Both
// guarantee single-document atomicity for the set-membership mutations
// (views, likes, dislikes, subscriptions); nothing spanning two documents is
// transactional.
package storage

import (
	"context"

	"clipriver/internal/models"
)

// Repository exposes the datastore operations required by the API handlers.
type Repository interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	UpdateUserProfile(ctx context.Context, id string, update ProfileUpdate) (models.User, error)

	// AddSubscription and IncrementSubscribers together form the subscribe
	// flow. They are two independent single-document writes with no
	// cross-document atomicity: a failure after AddSubscription committed
	// leaves the caller subscribed without the target's counter moving.
	AddSubscription(ctx context.Context, userID, channelID string) (models.User, error)
	IncrementSubscribers(ctx context.Context, channelID string) (models.User, error)

	CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error)
	GetVideo(ctx context.Context, id string) (models.Video, error)
	ListVideos(ctx context.Context) ([]models.Video, error)
	ListVideosByOwner(ctx context.Context, userID string) ([]models.Video, error)
	ListVideosByCategory(ctx context.Context, category string) ([]models.Video, error)
	ListVideosByTag(ctx context.Context, tag string) ([]models.Video, error)
	UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error)

	// DeleteVideo removes the record only. Remote assets are released by the
	// caller beforehand, and comments referencing the video are left behind.
	DeleteVideo(ctx context.Context, id string) error

	// RecordView adds userID to the video's viewed-by set (idempotent) and
	// returns the updated document.
	RecordView(ctx context.Context, videoID, userID string) (models.Video, error)

	// LikeVideo adds userID to liked-by and removes it from disliked-by as a
	// single atomic document update; DislikeVideo is the mirror operation.
	// In lenient mode a missing video is a silent no-op.
	LikeVideo(ctx context.Context, videoID, userID string) error
	DislikeVideo(ctx context.Context, videoID, userID string) error

	CreateComment(ctx context.Context, params CreateCommentParams) (models.Comment, error)
	GetComment(ctx context.Context, id string) (models.Comment, error)
	UpdateCommentText(ctx context.Context, id, text string) (models.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	// ListCommentsByVideo requires the video to exist (ErrNotFound
	// otherwise, regardless of strictness) and returns its comments newest
	// first with each author joined to {channelName, logoUrl}.
	ListCommentsByVideo(ctx context.Context, videoID string) ([]models.CommentWithAuthor, error)
}

var (
	_ Repository = (*Storage)(nil)
	_ Repository = (*MongoRepository)(nil)
)
