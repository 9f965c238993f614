package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"clipriver/internal/models"
	"clipriver/internal/storage"
)

// failingStore wraps the memory driver to force a record-insert failure
// after the assets were already provisioned.
type failingStore struct {
	*storage.Storage
}

func (s *failingStore) CreateVideo(ctx context.Context, params storage.CreateVideoParams) (models.Video, error) {
	return models.Video{}, fmt.Errorf("simulated insert failure")
}

func TestUploadVideo(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	owner := env.signupUser(t, "creator", "creator@example.com", "5550102")

	req := multipartRequest(t, http.MethodPost, Prefix+"/video/upload", multipartBody{
		fields: map[string]string{
			"title":       "go concurrency",
			"description": "channels and selects",
			"category":    "tech",
			"tags":        "go, concurrency , talks",
		},
		files: map[string]string{
			"video":     "talk.mp4",
			"thumbnail": "talk.png",
		},
	})
	rec := httptest.NewRecorder()
	env.handler.UploadVideo(rec, asUser(req, owner))

	expectMessage(t, rec, http.StatusCreated, "Video uploaded successfully")
	if env.relay.Count() != 2 {
		t.Fatalf("asset count = %d, want video plus thumbnail", env.relay.Count())
	}

	videos, err := env.store.ListVideosByOwner(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("len = %d, want 1", len(videos))
	}
	if want := []string{"go", "concurrency", "talks"}; !reflect.DeepEqual(videos[0].Tags, want) {
		t.Fatalf("tags = %v, want %v", videos[0].Tags, want)
	}
	if videos[0].VideoID == "" || videos[0].ThumbnailID == "" {
		t.Fatalf("asset handles missing: %+v", videos[0])
	}
}

func TestUploadVideoRequiresBothFiles(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	owner := env.signupUser(t, "creator", "creator@example.com", "5550102")

	req := multipartRequest(t, http.MethodPost, Prefix+"/video/upload", multipartBody{
		fields: map[string]string{"title": "clip"},
		files:  map[string]string{"video": "talk.mp4"},
	})
	rec := httptest.NewRecorder()
	env.handler.UploadVideo(rec, asUser(req, owner))
	expectMessage(t, rec, http.StatusBadRequest, "Video and thumbnail files are required")
	if env.relay.Count() != 0 {
		t.Fatalf("no assets should be uploaded, got %d", env.relay.Count())
	}
}

func TestUploadVideoReleasesAssetsOnInsertFailure(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	owner := env.signupUser(t, "creator", "creator@example.com", "5550102")
	env.handler.Store = &failingStore{Storage: env.store}

	req := multipartRequest(t, http.MethodPost, Prefix+"/video/upload", multipartBody{
		fields: map[string]string{"title": "clip"},
		files: map[string]string{
			"video":     "talk.mp4",
			"thumbnail": "talk.png",
		},
	})
	rec := httptest.NewRecorder()
	env.handler.UploadVideo(rec, asUser(req, owner))

	expectMessage(t, rec, http.StatusInternalServerError, "Something went wrong")
	if env.relay.Count() != 0 {
		t.Fatalf("orphaned assets left behind: %d", env.relay.Count())
	}
	if len(env.relay.Deleted()) != 2 {
		t.Fatalf("deleted = %v, want both assets released", env.relay.Deleted())
	}
}

func TestUpdateVideoOwnership(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	owner := env.signupUser(t, "creator", "creator@example.com", "5550102")
	other := env.signupUser(t, "other", "other@example.com", "5550103")
	video := env.createVideo(t, owner.ID, "clip", []string{"go"})

	rec := httptest.NewRecorder()
	req := multipartRequest(t, http.MethodPut, Prefix+"/video/update/"+video.ID, multipartBody{
		fields: map[string]string{"title": "stolen"},
	})
	env.handler.UpdateVideoByID(rec, asUser(req, other))
	expectMessage(t, rec, http.StatusForbidden, "You are not authorized to update this video")

	rec = httptest.NewRecorder()
	req = multipartRequest(t, http.MethodPut, Prefix+"/video/update/missing", multipartBody{
		fields: map[string]string{"title": "ghost"},
	})
	env.handler.UpdateVideoByID(rec, asUser(req, owner))
	expectMessage(t, rec, http.StatusNotFound, "Video not found")
}

func TestUpdateVideoPartialFields(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	owner := env.signupUser(t, "creator", "creator@example.com", "5550102")
	video := env.createVideo(t, owner.ID, "clip", []string{"go"})

	rec := httptest.NewRecorder()
	req := multipartRequest(t, http.MethodPut, Prefix+"/video/update/"+video.ID, multipartBody{
		fields: map[string]string{"title": "renamed"},
	})
	env.handler.UpdateVideoByID(rec, asUser(req, owner))
	expectMessage(t, rec, http.StatusOK, "Video updated successfully")

	updated, _ := env.store.GetVideo(context.Background(), video.ID)
	if updated.Title != "renamed" {
		t.Fatalf("title = %q", updated.Title)
	}
	if updated.Description != video.Description || updated.Category != video.Category {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	if !reflect.DeepEqual(updated.Tags, []string{"go"}) {
		t.Fatalf("tags should be untouched when absent, got %v", updated.Tags)
	}
}

func TestUpdateVideoEmptyTagsClears(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	owner := env.signupUser(t, "creator", "creator@example.com", "5550102")
	video := env.createVideo(t, owner.ID, "clip", []string{"go", "talks"})

	rec := httptest.NewRecorder()
	req := multipartRequest(t, http.MethodPut, Prefix+"/video/update/"+video.ID, multipartBody{
		fields: map[string]string{"tags": ""},
	})
	env.handler.UpdateVideoByID(rec, asUser(req, owner))
	expectMessage(t, rec, http.StatusOK, "Video updated successfully")

	updated, _ := env.store.GetVideo(context.Background(), video.ID)
	if len(updated.Tags) != 0 {
		t.Fatalf("tags should be cleared by a present-but-empty field, got %v", updated.Tags)
	}
}

func TestUpdateVideoReplacesThumbnail(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	owner := env.signupUser(t, "creator", "creator@example.com", "5550102")
	video := env.createVideo(t, owner.ID, "clip", nil)

	rec := httptest.NewRecorder()
	req := multipartRequest(t, http.MethodPut, Prefix+"/video/update/"+video.ID, multipartBody{
		files: map[string]string{"thumbnail": "new.png"},
	})
	env.handler.UpdateVideoByID(rec, asUser(req, owner))
	expectMessage(t, rec, http.StatusOK, "Video updated successfully")

	deleted := env.relay.Deleted()
	if len(deleted) != 1 || deleted[0] != video.ThumbnailID {
		t.Fatalf("old thumbnail not released first: %v", deleted)
	}
	updated, _ := env.store.GetVideo(context.Background(), video.ID)
	if updated.ThumbnailID == video.ThumbnailID || updated.ThumbnailID == "" {
		t.Fatalf("thumbnail handle not replaced: %q", updated.ThumbnailID)
	}
}

func TestDeleteVideo(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	owner := env.signupUser(t, "creator", "creator@example.com", "5550102")
	other := env.signupUser(t, "other", "other@example.com", "5550103")
	video := env.createVideo(t, owner.ID, "clip", nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, Prefix+"/video/delete/"+video.ID, nil)
	env.handler.DeleteVideoByID(rec, asUser(req, other))
	expectMessage(t, rec, http.StatusForbidden, "You are not authorized to delete this video")

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, Prefix+"/video/delete/"+video.ID, nil)
	env.handler.DeleteVideoByID(rec, asUser(req, owner))
	expectMessage(t, rec, http.StatusOK, "Video deleted successfully")

	if _, err := env.store.GetVideo(context.Background(), video.ID); err == nil {
		t.Fatal("video record should be gone")
	}
	deleted := env.relay.Deleted()
	if len(deleted) != 2 || deleted[0] != video.VideoID || deleted[1] != video.ThumbnailID {
		t.Fatalf("expected video then thumbnail released, got %v", deleted)
	}
}

func TestDeleteVideoToleratesMissingThumbnailHandle(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	owner := env.signupUser(t, "creator", "creator@example.com", "5550102")
	video, err := env.store.CreateVideo(context.Background(), storage.CreateVideoParams{
		Title:    "bare",
		UserID:   owner.ID,
		VideoURL: "memory://videos/bare",
		VideoID:  "videos/bare",
	})
	if err != nil {
		t.Fatalf("create video: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, Prefix+"/video/delete/"+video.ID, nil)
	env.handler.DeleteVideoByID(rec, asUser(req, owner))
	expectMessage(t, rec, http.StatusOK, "Video deleted successfully")

	deleted := env.relay.Deleted()
	if len(deleted) != 1 || deleted[0] != "videos/bare" {
		t.Fatalf("only the video asset should be released, got %v", deleted)
	}
}

func TestVideoByIDRecordsView(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	owner := env.signupUser(t, "creator", "creator@example.com", "5550102")
	viewer := env.signupUser(t, "viewer", "viewer@example.com", "5550101")
	video := env.createVideo(t, owner.ID, "clip", nil)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, Prefix+"/video/"+video.ID, nil)
		env.handler.VideoByID(rec, asUser(req, viewer))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	stored, _ := env.store.GetVideo(context.Background(), video.ID)
	if len(stored.ViewedBy) != 1 || stored.ViewedBy[0] != viewer.ID {
		t.Fatalf("viewedBy = %v, want exactly the viewer once", stored.ViewedBy)
	}
}

func TestVideoListings(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	owner := env.signupUser(t, "creator", "creator@example.com", "5550102")
	env.createVideo(t, owner.ID, "clip-a", []string{"go"})
	env.createVideo(t, owner.ID, "clip-b", []string{"jazz"})

	rec := httptest.NewRecorder()
	env.handler.ListVideos(rec, httptest.NewRequest(http.MethodGet, Prefix+"/video/all", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list all: %d", rec.Code)
	}
	if videos, ok := decodeBody(t, rec)["videos"].([]interface{}); !ok || len(videos) != 2 {
		t.Fatalf("expected two videos, got %v", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.handler.VideosByTag(rec, httptest.NewRequest(http.MethodGet, Prefix+"/video/tags/jazz", nil))
	if videos, ok := decodeBody(t, rec)["videos"].([]interface{}); !ok || len(videos) != 1 {
		t.Fatalf("tag filter wrong: %v", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.handler.VideosByCategory(rec, httptest.NewRequest(http.MethodGet, Prefix+"/video/category/tech", nil))
	if videos, ok := decodeBody(t, rec)["videos"].([]interface{}); !ok || len(videos) != 2 {
		t.Fatalf("category filter wrong: %v", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.handler.MyVideos(rec, asUser(httptest.NewRequest(http.MethodGet, Prefix+"/video/myVideos", nil), owner))
	if videos, ok := decodeBody(t, rec)["videos"].([]interface{}); !ok || len(videos) != 2 {
		t.Fatalf("owner listing wrong: %v", rec.Body.String())
	}
}

func TestLikeAndDislike(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	owner := env.signupUser(t, "creator", "creator@example.com", "5550102")
	viewer := env.signupUser(t, "viewer", "viewer@example.com", "5550101")
	video := env.createVideo(t, owner.ID, "clip", nil)

	rec := httptest.NewRecorder()
	env.handler.LikeVideo(rec, asUser(jsonRequest(t, http.MethodPost, Prefix+"/video/like", map[string]string{"videoId": video.ID}), viewer))
	expectMessage(t, rec, http.StatusOK, "Video liked")

	rec = httptest.NewRecorder()
	env.handler.DislikeVideo(rec, asUser(jsonRequest(t, http.MethodPost, Prefix+"/video/dislike", map[string]string{"videoId": video.ID}), viewer))
	expectMessage(t, rec, http.StatusOK, "Video disliked")

	stored, _ := env.store.GetVideo(context.Background(), video.ID)
	if len(stored.LikedBy) != 0 || len(stored.DislikedBy) != 1 {
		t.Fatalf("reaction sets wrong: liked=%v disliked=%v", stored.LikedBy, stored.DislikedBy)
	}
}

func TestLikeMissingVideo(t *testing.T) {
	lenient := newTestEnv(t, storage.Options{})
	viewer := lenient.signupUser(t, "viewer", "viewer@example.com", "5550101")

	rec := httptest.NewRecorder()
	lenient.handler.LikeVideo(rec, asUser(jsonRequest(t, http.MethodPost, Prefix+"/video/like", map[string]string{"videoId": "missing"}), viewer))
	expectMessage(t, rec, http.StatusOK, "Video liked")

	strict := newTestEnv(t, storage.Options{StrictReferences: true})
	strictViewer := strict.signupUser(t, "viewer", "viewer@example.com", "5550101")
	rec = httptest.NewRecorder()
	strict.handler.LikeVideo(rec, asUser(jsonRequest(t, http.MethodPost, Prefix+"/video/like", map[string]string{"videoId": "missing"}), strictViewer))
	expectMessage(t, rec, http.StatusNotFound, "Video not found")
}

func TestLikeRequiresVideoID(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	viewer := env.signupUser(t, "viewer", "viewer@example.com", "5550101")

	rec := httptest.NewRecorder()
	env.handler.LikeVideo(rec, asUser(jsonRequest(t, http.MethodPost, Prefix+"/video/like", map[string]string{}), viewer))
	expectMessage(t, rec, http.StatusBadRequest, "Please fill in all fields")
}
