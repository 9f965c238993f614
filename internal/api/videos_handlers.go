package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"clipriver/internal/media"
	"clipriver/internal/models"
	"clipriver/internal/observability/metrics"
	"clipriver/internal/storage"
)

type reactionRequest struct {
	VideoID string `json:"videoId"`
}

// UploadVideo provisions both remote assets, then persists the record. The
// record is only written once both uploads succeeded; if persisting fails
// afterwards the uploaded assets are released best-effort. A thumbnail
// failure after the video asset succeeded leaves the video asset behind.
func (h *Handler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	videoFile, err := openFormFile(r, "video")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	defer videoFile.Close()
	thumbFile, err := openFormFile(r, "thumbnail")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	defer thumbFile.Close()
	if videoFile == nil || thumbFile == nil {
		writeMessage(w, http.StatusBadRequest, "Video and thumbnail files are required")
		return
	}

	videoAsset, err := h.uploadFormFile(r.Context(), media.NamespaceVideos, videoFile)
	if err != nil {
		h.logger().Error("video upload failed", "user", identity.UserID, "error", err)
		writeServerError(w, "Something went wrong", err)
		return
	}
	thumbAsset, err := h.uploadFormFile(r.Context(), media.NamespaceThumbnails, thumbFile)
	if err != nil {
		h.logger().Error("thumbnail upload failed", "user", identity.UserID, "error", err)
		writeServerError(w, "Something went wrong", err)
		return
	}

	video, err := h.Store.CreateVideo(r.Context(), storage.CreateVideoParams{
		Title:        formValue(r, "title"),
		Description:  formValue(r, "description"),
		UserID:       identity.UserID,
		VideoURL:     videoAsset.URL,
		VideoID:      videoAsset.Handle,
		ThumbnailURL: thumbAsset.URL,
		ThumbnailID:  thumbAsset.Handle,
		Category:     formValue(r, "category"),
		Tags:         splitTags(formValue(r, "tags")),
	})
	if err != nil {
		h.releaseAsset(r, videoAsset.Handle)
		h.releaseAsset(r, thumbAsset.Handle)
		writeServerError(w, "Something went wrong", err)
		return
	}

	metrics.ObserveVideoEvent("upload")
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Video uploaded successfully",
		"video":   video,
	})
}

// UpdateVideoByID applies a partial update under the ownership contract.
// Empty or absent fields keep their stored values, except tags, which
// replaces the whole sequence whenever the field is present. A replacement
// thumbnail deletes the old remote asset before the new one is uploaded.
func (h *Handler) UpdateVideoByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, "PUT")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	videoID := pathSuffix(r, Prefix+"/video/update/")
	if videoID == "" {
		writeMessage(w, http.StatusNotFound, "Video not found")
		return
	}

	video, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Video not found")
			return
		}
		writeServerError(w, "Something went wrong", err)
		return
	}
	if video.UserID != identity.UserID {
		writeMessage(w, http.StatusForbidden, "You are not authorized to update this video")
		return
	}

	if err := parseAnyForm(r); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	update := storage.VideoUpdate{}
	if title := optionalFormValue(r, "title"); title != nil && *title != "" {
		update.Title = title
	}
	if description := optionalFormValue(r, "description"); description != nil && *description != "" {
		update.Description = description
	}
	if category := optionalFormValue(r, "category"); category != nil && *category != "" {
		update.Category = category
	}
	if tags := optionalFormValue(r, "tags"); tags != nil {
		// Presence, not truthiness: tags="" clears the sequence.
		parsed := splitTags(*tags)
		update.Tags = &parsed
	}

	thumbFile, err := openFormFile(r, "thumbnail")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if thumbFile != nil {
		defer thumbFile.Close()
		// Old asset goes first; the ownership check above already passed.
		metrics.ObserveMediaAttempt("delete")
		if err := h.Media.Delete(r.Context(), video.ThumbnailID); err != nil {
			metrics.ObserveMediaFailure("delete")
			h.logger().Error("old thumbnail delete failed", "video", videoID, "error", err)
			writeServerError(w, "Something went wrong", err)
			return
		}
		asset, err := h.uploadFormFile(r.Context(), media.NamespaceThumbnails, thumbFile)
		if err != nil {
			h.logger().Error("thumbnail upload failed", "video", videoID, "error", err)
			writeServerError(w, "Something went wrong", err)
			return
		}
		update.ThumbnailURL = &asset.URL
		update.ThumbnailID = &asset.Handle
	}

	updated, err := h.Store.UpdateVideo(r.Context(), videoID, update)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Video not found")
			return
		}
		writeServerError(w, "Something went wrong", err)
		return
	}

	metrics.ObserveVideoEvent("update")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Video updated successfully",
		"video":   updated,
	})
}

// DeleteVideoByID releases both remote assets, skipping absent handles and
// tolerating remote failures, then removes the record. Comments referencing
// the video survive it.
func (h *Handler) DeleteVideoByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, "DELETE")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	videoID := pathSuffix(r, Prefix+"/video/delete/")
	if videoID == "" {
		writeMessage(w, http.StatusNotFound, "Video not found")
		return
	}

	video, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Video not found")
			return
		}
		writeServerError(w, "Something went wrong", err)
		return
	}
	if video.UserID != identity.UserID {
		writeMessage(w, http.StatusForbidden, "You are not authorized to delete this video")
		return
	}

	h.releaseAsset(r, video.VideoID)
	h.releaseAsset(r, video.ThumbnailID)

	if err := h.Store.DeleteVideo(r.Context(), videoID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Video not found")
			return
		}
		writeServerError(w, "Something went wrong", err)
		return
	}
	metrics.ObserveVideoEvent("delete")
	writeMessage(w, http.StatusOK, "Video deleted successfully")
}

// ListVideos serves the public newest-first feed.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	videos, err := h.Store.ListVideos(r.Context())
	if err != nil {
		writeServerError(w, "Something went wrong", err)
		return
	}
	writeVideoList(w, videos)
}

// MyVideos lists the caller's own uploads.
func (h *Handler) MyVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	videos, err := h.Store.ListVideosByOwner(r.Context(), identity.UserID)
	if err != nil {
		writeServerError(w, "Something went wrong", err)
		return
	}
	writeVideoList(w, videos)
}

// VideoByID returns one video and records the caller's view as a side
// effect; the viewed-by set stays de-duplicated however often the same
// caller fetches it.
func (h *Handler) VideoByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	videoID := pathSuffix(r, Prefix+"/video/")
	if videoID == "" {
		writeMessage(w, http.StatusNotFound, "Video not found")
		return
	}

	video, err := h.Store.RecordView(r.Context(), videoID, identity.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Video not found")
			return
		}
		writeServerError(w, "Something went wrong", err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

// VideosByCategory serves the public category listing.
func (h *Handler) VideosByCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	category := pathSuffix(r, Prefix+"/video/category/")
	videos, err := h.Store.ListVideosByCategory(r.Context(), category)
	if err != nil {
		writeServerError(w, "Something went wrong", err)
		return
	}
	writeVideoList(w, videos)
}

// VideosByTag serves the public tag listing.
func (h *Handler) VideosByTag(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	tag := pathSuffix(r, Prefix+"/video/tags/")
	videos, err := h.Store.ListVideosByTag(r.Context(), tag)
	if err != nil {
		writeServerError(w, "Something went wrong", err)
		return
	}
	writeVideoList(w, videos)
}

// LikeVideo adds the caller to the liked-by set and drops them from
// disliked-by in one atomic document update.
func (h *Handler) LikeVideo(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.Store.LikeVideo, "like", "Video liked")
}

// DislikeVideo is the mirror of LikeVideo.
func (h *Handler) DislikeVideo(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.Store.DislikeVideo, "dislike", "Video disliked")
}

func (h *Handler) react(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, videoID, userID string) error, kind, message string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	var req reactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.VideoID == "" {
		writeMessage(w, http.StatusBadRequest, "Please fill in all fields")
		return
	}
	if err := apply(r.Context(), req.VideoID, identity.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Video not found")
			return
		}
		writeServerError(w, "Something went wrong", err)
		return
	}
	metrics.ObserveReaction(kind)
	writeMessage(w, http.StatusOK, message)
}

func writeVideoList(w http.ResponseWriter, videos []models.Video) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"videos": videos})
}

// splitTags turns a comma-separated input into an ordered sequence; blank
// entries are dropped, so an empty input yields an empty sequence.
func splitTags(input string) []string {
	tags := make([]string, 0)
	for _, tag := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

// pathSuffix extracts the trailing path parameter after the given prefix.
func pathSuffix(r *http.Request, prefix string) string {
	suffix := strings.TrimPrefix(r.URL.Path, prefix)
	if suffix == r.URL.Path {
		return ""
	}
	return strings.Trim(suffix, "/")
}

// releaseAsset deletes a remote asset best-effort: failures are logged and
// do not abort the surrounding operation.
func (h *Handler) releaseAsset(r *http.Request, handle string) {
	if handle == "" {
		return
	}
	metrics.ObserveMediaAttempt("delete")
	if err := h.Media.Delete(r.Context(), handle); err != nil {
		metrics.ObserveMediaFailure("delete")
		h.logger().Error("asset delete failed", "handle", handle, "error", err)
	}
}
