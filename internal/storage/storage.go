package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"clipriver/internal/models"
)

type dataset struct {
	Users    map[string]models.User
	Videos   map[string]models.Video
	Comments map[string]models.Comment
}

func newDataset() dataset {
	return dataset{
		Users:    make(map[string]models.User),
		Videos:   make(map[string]models.Video),
		Comments: make(map[string]models.Comment),
	}
}

// Storage is the in-memory Repository driver. A single RWMutex around the
// dataset gives every operation the same single-document atomicity the Mongo
// driver inherits from the server, which keeps the two drivers
// behaviourally interchangeable in tests.
type Storage struct {
	mu   sync.RWMutex
	data dataset
	opts Options
	now  func() time.Time
}

// New constructs an empty in-memory store.
func New(opts Options) *Storage {
	return &Storage{
		data: newDataset(),
		opts: opts,
		now:  time.Now,
	}
}

// Ping implements Repository; the memory driver is always reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Storage) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	hash, err := hashPassword(params.Password)
	if err != nil {
		return models.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(params.Email))
	for _, existing := range s.data.Users {
		if strings.EqualFold(existing.Email, email) || existing.Phone == params.Phone {
			return models.User{}, ErrDuplicate
		}
	}

	now := s.now().UTC()
	user := models.User{
		ID:                 newID(),
		ChannelName:        params.ChannelName,
		Email:              email,
		Phone:              params.Phone,
		PasswordHash:       hash,
		LogoURL:            params.LogoURL,
		LogoID:             params.LogoID,
		Subscribers:        0,
		SubscribedChannels: []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.data.Users[user.ID] = user
	return cloneUser(user), nil
}

func (s *Storage) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.data.Users {
		if strings.EqualFold(user.Email, strings.TrimSpace(email)) {
			if !verifyPassword(user.PasswordHash, password) {
				return models.User{}, ErrInvalidCredentials
			}
			return cloneUser(user), nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *Storage) GetUser(ctx context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *Storage) UpdateUserProfile(ctx context.Context, id string, update ProfileUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	if update.ChannelName != nil {
		user.ChannelName = *update.ChannelName
	}
	if update.Phone != nil {
		// The unique index, not the handler, catches a colliding phone;
		// callers surface ErrDuplicate as a raw 500.
		for otherID, other := range s.data.Users {
			if otherID != id && other.Phone == *update.Phone {
				return models.User{}, ErrDuplicate
			}
		}
		user.Phone = *update.Phone
	}
	if update.LogoURL != nil {
		user.LogoURL = *update.LogoURL
	}
	if update.LogoID != nil {
		user.LogoID = *update.LogoID
	}
	user.UpdatedAt = s.now().UTC()
	s.data.Users[id] = user
	return cloneUser(user), nil
}

func (s *Storage) AddSubscription(ctx context.Context, userID, channelID string) (models.User, error) {
	if userID == channelID {
		return models.User{}, ErrSelfSubscribe
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[userID]
	if !ok {
		return models.User{}, ErrNotFound
	}
	if user.IsSubscribedTo(channelID) {
		return models.User{}, ErrAlreadySubscribed
	}
	user.SubscribedChannels = append(user.SubscribedChannels, channelID)
	user.UpdatedAt = s.now().UTC()
	s.data.Users[userID] = user
	return cloneUser(user), nil
}

func (s *Storage) IncrementSubscribers(ctx context.Context, channelID string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.data.Users[channelID]
	if !ok {
		return models.User{}, ErrNotFound
	}
	channel.Subscribers++
	channel.UpdatedAt = s.now().UTC()
	s.data.Users[channelID] = channel
	return cloneUser(channel), nil
}

func (s *Storage) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
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
		Tags:         append([]string{}, params.Tags...),
		ViewedBy:     []string{},
		LikedBy:      []string{},
		DislikedBy:   []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.data.Videos[video.ID] = video
	return cloneVideo(video), nil
}

func (s *Storage) GetVideo(ctx context.Context, id string) (models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, ErrNotFound
	}
	return cloneVideo(video), nil
}

func (s *Storage) ListVideos(ctx context.Context) ([]models.Video, error) {
	return s.listVideos(func(models.Video) bool { return true })
}

func (s *Storage) ListVideosByOwner(ctx context.Context, userID string) ([]models.Video, error) {
	return s.listVideos(func(v models.Video) bool { return v.UserID == userID })
}

func (s *Storage) ListVideosByCategory(ctx context.Context, category string) ([]models.Video, error) {
	return s.listVideos(func(v models.Video) bool { return v.Category == category })
}

func (s *Storage) ListVideosByTag(ctx context.Context, tag string) ([]models.Video, error) {
	return s.listVideos(func(v models.Video) bool {
		for _, existing := range v.Tags {
			if existing == tag {
				return true
			}
		}
		return false
	})
}

func (s *Storage) listVideos(match func(models.Video) bool) ([]models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	videos := make([]models.Video, 0)
	for _, video := range s.data.Videos {
		if match(video) {
			videos = append(videos, cloneVideo(video))
		}
	}
	sort.Slice(videos, func(i, j int) bool {
		if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].ID > videos[j].ID
		}
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
	return videos, nil
}

func (s *Storage) UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, ErrNotFound
	}
	if update.Title != nil {
		video.Title = *update.Title
	}
	if update.Description != nil {
		video.Description = *update.Description
	}
	if update.Category != nil {
		video.Category = *update.Category
	}
	if update.Tags != nil {
		video.Tags = append([]string{}, (*update.Tags)...)
	}
	if update.ThumbnailURL != nil {
		video.ThumbnailURL = *update.ThumbnailURL
	}
	if update.ThumbnailID != nil {
		video.ThumbnailID = *update.ThumbnailID
	}
	video.UpdatedAt = s.now().UTC()
	s.data.Videos[id] = video
	return cloneVideo(video), nil
}

func (s *Storage) DeleteVideo(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Videos[id]; !ok {
		return ErrNotFound
	}
	// Comments referencing the video are deliberately left behind.
	delete(s.data.Videos, id)
	return nil
}

func (s *Storage) RecordView(ctx context.Context, videoID, userID string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[videoID]
	if !ok {
		return models.Video{}, ErrNotFound
	}
	video.ViewedBy = addToSet(video.ViewedBy, userID)
	s.data.Videos[videoID] = video
	return cloneVideo(video), nil
}

func (s *Storage) LikeVideo(ctx context.Context, videoID, userID string) error {
	return s.applyReaction(videoID, func(v *models.Video) {
		v.LikedBy = addToSet(v.LikedBy, userID)
		v.DislikedBy = removeFromSet(v.DislikedBy, userID)
	})
}

func (s *Storage) DislikeVideo(ctx context.Context, videoID, userID string) error {
	return s.applyReaction(videoID, func(v *models.Video) {
		v.DislikedBy = addToSet(v.DislikedBy, userID)
		v.LikedBy = removeFromSet(v.LikedBy, userID)
	})
}

func (s *Storage) applyReaction(videoID string, mutate func(*models.Video)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[videoID]
	if !ok {
		if s.opts.StrictReferences {
			return ErrNotFound
		}
		return nil
	}
	mutate(&video)
	video.UpdatedAt = s.now().UTC()
	s.data.Videos[videoID] = video
	return nil
}

func (s *Storage) CreateComment(ctx context.Context, params CreateCommentParams) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.StrictReferences {
		if _, ok := s.data.Videos[params.VideoID]; !ok {
			return models.Comment{}, ErrNotFound
		}
	}
	now := s.now().UTC()
	comment := models.Comment{
		ID:          newID(),
		VideoID:     params.VideoID,
		UserID:      params.UserID,
		CommentText: params.CommentText,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.data.Comments[comment.ID] = comment
	return comment, nil
}

func (s *Storage) GetComment(ctx context.Context, id string) (models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.data.Comments[id]
	if !ok {
		return models.Comment{}, ErrNotFound
	}
	return comment, nil
}

func (s *Storage) UpdateCommentText(ctx context.Context, id, text string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.data.Comments[id]
	if !ok {
		return models.Comment{}, ErrNotFound
	}
	comment.CommentText = text
	comment.UpdatedAt = s.now().UTC()
	s.data.Comments[id] = comment
	return comment, nil
}

func (s *Storage) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Comments[id]; !ok {
		return ErrNotFound
	}
	delete(s.data.Comments, id)
	return nil
}

func (s *Storage) ListCommentsByVideo(ctx context.Context, videoID string) ([]models.CommentWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return nil, ErrNotFound
	}
	comments := make([]models.CommentWithAuthor, 0)
	for _, comment := range s.data.Comments {
		if comment.VideoID != videoID {
			continue
		}
		entry := models.CommentWithAuthor{Comment: comment}
		if author, ok := s.data.Users[comment.UserID]; ok {
			entry.Author = models.CommentAuthor{ChannelName: author.ChannelName, LogoURL: author.LogoURL}
		}
		comments = append(comments, entry)
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID > comments[j].ID
		}
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	return comments, nil
}

func addToSet(set []string, value string) []string {
	for _, existing := range set {
		if existing == value {
			return set
		}
	}
	return append(set, value)
}

func removeFromSet(set []string, value string) []string {
	filtered := set[:0]
	for _, existing := range set {
		if existing != value {
			filtered = append(filtered, existing)
		}
	}
	return filtered
}

func cloneUser(user models.User) models.User {
	user.SubscribedChannels = append([]string{}, user.SubscribedChannels...)
	return user
}

func cloneVideo(video models.Video) models.Video {
	video.Tags = append([]string{}, video.Tags...)
	video.ViewedBy = append([]string{}, video.ViewedBy...)
	video.LikedBy = append([]string{}, video.LikedBy...)
	video.DislikedBy = append([]string{}, video.DislikedBy...)
	return video
}
