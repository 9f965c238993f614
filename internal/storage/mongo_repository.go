package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"clipriver/internal/models"
)

// MongoRepository is the production Repository driver. Every set-membership
// mutation is a single UpdateOne with $addToSet/$pull, so the store's
// single-document atomicity carries the likes/dislikes/views/subscriptions
// contract; nothing here opens a multi-document transaction.
type MongoRepository struct {
	client   *mongo.Client
	users    *mongo.Collection
	videos   *mongo.Collection
	comments *mongo.Collection
	opts     Options
}

// NewMongoRepository connects to MongoDB, ensures the unique indexes on user
// email and phone, and returns the driver. The caller owns Close.
func NewMongoRepository(ctx context.Context, cfg MongoConfig) (*MongoRepository, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("mongo uri required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	repo := &MongoRepository{
		client:   client,
		users:    db.Collection("users"),
		videos:   db.Collection("videos"),
		comments: db.Collection("comments"),
		opts:     cfg.Options,
	}
	if err := repo.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return repo, nil
}

func (r *MongoRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("ensure user indexes: %w", err)
	}
	_, err = r.videos.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure video indexes: %w", err)
	}
	_, err = r.comments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "video_id", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("ensure comment indexes: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (r *MongoRepository) Close(ctx context.Context) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func mapMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}

func (r *MongoRepository) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	hash, err := hashPassword(params.Password)
	if err != nil {
		return models.User{}, err
	}
	now := time.Now().UTC()
	user := models.User{
		ID:                 newID(),
		ChannelName:        params.ChannelName,
		Email:              strings.ToLower(strings.TrimSpace(params.Email)),
		Phone:              params.Phone,
		PasswordHash:       hash,
		LogoURL:            params.LogoURL,
		LogoID:             params.LogoID,
		Subscribers:        0,
		SubscribedChannels: []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := r.users.InsertOne(ctx, user); err != nil {
		return models.User{}, mapMongoError(err)
	}
	return user, nil
}

func (r *MongoRepository) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	var user models.User
	filter := bson.M{"email": strings.ToLower(strings.TrimSpace(email))}
	if err := r.users.FindOne(ctx, filter).Decode(&user); err != nil {
		return models.User{}, mapMongoError(err)
	}
	if !verifyPassword(user.PasswordHash, password) {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (r *MongoRepository) GetUser(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return models.User{}, mapMongoError(err)
	}
	return user, nil
}

func (r *MongoRepository) UpdateUserProfile(ctx context.Context, id string, update ProfileUpdate) (models.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.ChannelName != nil {
		set["channelName"] = *update.ChannelName
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	if update.LogoURL != nil {
		set["logoUrl"] = *update.LogoURL
	}
	if update.LogoID != nil {
		set["logoId"] = *update.LogoID
	}

	var user models.User
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return models.User{}, mapMongoError(err)
	}
	return user, nil
}

func (r *MongoRepository) AddSubscription(ctx context.Context, userID, channelID string) (models.User, error) {
	if userID == channelID {
		return models.User{}, ErrSelfSubscribe
	}

	// The membership guard and the insert are one document update: the
	// filter refuses documents already holding channelID, so a concurrent
	// duplicate loses the race instead of double-inserting.
	var user models.User
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"_id": userID, "subscribedChannels": bson.M{"$ne": channelID}},
		bson.M{
			"$addToSet": bson.M{"subscribedChannels": channelID},
			"$set":      bson.M{"updatedAt": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Disambiguate: a missing user and an existing subscription both
		// fail the filter.
		if _, getErr := r.GetUser(ctx, userID); getErr != nil {
			return models.User{}, getErr
		}
		return models.User{}, ErrAlreadySubscribed
	}
	return models.User{}, err
}

func (r *MongoRepository) IncrementSubscribers(ctx context.Context, channelID string) (models.User, error) {
	var channel models.User
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"_id": channelID},
		bson.M{
			"$inc": bson.M{"subscribers": 1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&channel)
	if err != nil {
		return models.User{}, mapMongoError(err)
	}
	return channel, nil
}

func (r *MongoRepository) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	now := time.Now().UTC()
	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}
	video := models.Video{
		ID:           newID(),
		Title:        params.Title,
		Description:  params.Description,
		UserID:       params.UserID,
		VideoURL:     params.VideoURL,
		VideoID:      params.VideoID,
		ThumbnailURL: params.ThumbnailURL,
		ThumbnailID:  params.ThumbnailID,
		Category:     params.Category,
		Tags:         tags,
		ViewedBy:     []string{},
		LikedBy:      []string{},
		DislikedBy:   []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.videos.InsertOne(ctx, video); err != nil {
		return models.Video{}, mapMongoError(err)
	}
	return video, nil
}

func (r *MongoRepository) GetVideo(ctx context.Context, id string) (models.Video, error) {
	var video models.Video
	if err := r.videos.FindOne(ctx, bson.M{"_id": id}).Decode(&video); err != nil {
		return models.Video{}, mapMongoError(err)
	}
	return video, nil
}

func (r *MongoRepository) ListVideos(ctx context.Context) ([]models.Video, error) {
	return r.findVideos(ctx, bson.M{})
}

func (r *MongoRepository) ListVideosByOwner(ctx context.Context, userID string) ([]models.Video, error) {
	return r.findVideos(ctx, bson.M{"user_id": userID})
}

func (r *MongoRepository) ListVideosByCategory(ctx context.Context, category string) ([]models.Video, error) {
	return r.findVideos(ctx, bson.M{"category": category})
}

func (r *MongoRepository) ListVideosByTag(ctx context.Context, tag string) ([]models.Video, error) {
	return r.findVideos(ctx, bson.M{"tags": tag})
}

func (r *MongoRepository) findVideos(ctx context.Context, filter bson.M) ([]models.Video, error) {
	cursor, err := r.videos.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	videos := make([]models.Video, 0)
	if err := cursor.All(ctx, &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

func (r *MongoRepository) UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Category != nil {
		set["category"] = *update.Category
	}
	if update.Tags != nil {
		tags := *update.Tags
		if tags == nil {
			tags = []string{}
		}
		set["tags"] = tags
	}
	if update.ThumbnailURL != nil {
		set["thumbnailUrl"] = *update.ThumbnailURL
	}
	if update.ThumbnailID != nil {
		set["thumbnailId"] = *update.ThumbnailID
	}

	var video models.Video
	err := r.videos.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&video)
	if err != nil {
		return models.Video{}, mapMongoError(err)
	}
	return video, nil
}

func (r *MongoRepository) DeleteVideo(ctx context.Context, id string) error {
	result, err := r.videos.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	// Comments referencing the video are deliberately left behind.
	return nil
}

func (r *MongoRepository) RecordView(ctx context.Context, videoID, userID string) (models.Video, error) {
	var video models.Video
	err := r.videos.FindOneAndUpdate(ctx,
		bson.M{"_id": videoID},
		bson.M{"$addToSet": bson.M{"viewedBy": userID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&video)
	if err != nil {
		return models.Video{}, mapMongoError(err)
	}
	return video, nil
}

func (r *MongoRepository) LikeVideo(ctx context.Context, videoID, userID string) error {
	return r.applyReaction(ctx, videoID, bson.M{
		"$addToSet": bson.M{"likedBy": userID},
		"$pull":     bson.M{"dislikedBy": userID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *MongoRepository) DislikeVideo(ctx context.Context, videoID, userID string) error {
	return r.applyReaction(ctx, videoID, bson.M{
		"$addToSet": bson.M{"dislikedBy": userID},
		"$pull":     bson.M{"likedBy": userID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *MongoRepository) applyReaction(ctx context.Context, videoID string, update bson.M) error {
	result, err := r.videos.UpdateOne(ctx, bson.M{"_id": videoID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 && r.opts.StrictReferences {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) CreateComment(ctx context.Context, params CreateCommentParams) (models.Comment, error) {
	if r.opts.StrictReferences {
		if _, err := r.GetVideo(ctx, params.VideoID); err != nil {
			return models.Comment{}, err
		}
	}
	now := time.Now().UTC()
	comment := models.Comment{
		ID:          newID(),
		VideoID:     params.VideoID,
		UserID:      params.UserID,
		CommentText: params.CommentText,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.comments.InsertOne(ctx, comment); err != nil {
		return models.Comment{}, mapMongoError(err)
	}
	return comment, nil
}

func (r *MongoRepository) GetComment(ctx context.Context, id string) (models.Comment, error) {
	var comment models.Comment
	if err := r.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		return models.Comment{}, mapMongoError(err)
	}
	return comment, nil
}

func (r *MongoRepository) UpdateCommentText(ctx context.Context, id, text string) (models.Comment, error) {
	var comment models.Comment
	err := r.comments.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"commentText": text, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&comment)
	if err != nil {
		return models.Comment{}, mapMongoError(err)
	}
	return comment, nil
}

func (r *MongoRepository) DeleteComment(ctx context.Context, id string) error {
	result, err := r.comments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ListCommentsByVideo(ctx context.Context, videoID string) ([]models.CommentWithAuthor, error) {
	if _, err := r.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"video_id": videoID}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "user_id",
			"foreignField": "_id",
			"as":           "user",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{"path": "$user", "preserveNullAndEmptyArrays": true}}},
		bson.D{{Key: "$project", Value: bson.M{
			"video_id":    1,
			"user_id":     1,
			"commentText": 1,
			"createdAt":   1,
			"updatedAt":   1,
			"user": bson.M{
				"channelName": "$user.channelName",
				"logoUrl":     "$user.logoUrl",
			},
		}}},
	}
	cursor, err := r.comments.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	comments := make([]models.CommentWithAuthor, 0)
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}
