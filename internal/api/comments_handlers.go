package api

import (
	"errors"
	"net/http"

	"clipriver/internal/observability/metrics"
	"clipriver/internal/storage"
)

type newCommentRequest struct {
	VideoID     string `json:"video_id"`
	CommentText string `json:"commentText"`
}

type editCommentRequest struct {
	CommentText string `json:"commentText"`
}

// NewComment attaches a comment to a video on behalf of the caller.
func (h *Handler) NewComment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	var req newCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.VideoID == "" || req.CommentText == "" {
		writeMessage(w, http.StatusBadRequest, "Please fill in all fields")
		return
	}

	comment, err := h.Store.CreateComment(r.Context(), storage.CreateCommentParams{
		VideoID:     req.VideoID,
		UserID:      identity.UserID,
		CommentText: req.CommentText,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Video not found")
			return
		}
		writeServerError(w, "Something went wrong", err)
		return
	}

	metrics.ObserveCommentEvent("create")
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Comment created successfully",
		"comment": comment,
	})
}

// CommentByID dispatches the /comment/{id} routes: PUT edits a comment,
// DELETE removes one, and GET reads the id as a video id and lists that
// video's comments with their authors joined in.
func (h *Handler) CommentByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.editComment(w, r)
	case http.MethodDelete:
		h.deleteComment(w, r)
	case http.MethodGet:
		h.listComments(w, r)
	default:
		methodNotAllowed(w, r, "GET, PUT, DELETE")
	}
}

func (h *Handler) editComment(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	commentID := pathSuffix(r, Prefix+"/comment/")
	if commentID == "" {
		writeMessage(w, http.StatusNotFound, "Comment not found")
		return
	}
	var req editCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CommentText == "" {
		writeMessage(w, http.StatusBadRequest, "Please fill in all fields")
		return
	}

	comment, err := h.Store.GetComment(r.Context(), commentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Comment not found")
			return
		}
		writeServerError(w, "Something went wrong", err)
		return
	}
	if comment.UserID != identity.UserID {
		writeMessage(w, http.StatusForbidden, "You are not authorized to edit this comment")
		return
	}

	updated, err := h.Store.UpdateCommentText(r.Context(), commentID, req.CommentText)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Comment not found")
			return
		}
		writeServerError(w, "Something went wrong", err)
		return
	}

	metrics.ObserveCommentEvent("update")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Comment updated successfully",
		"comment": updated,
	})
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	commentID := pathSuffix(r, Prefix+"/comment/")
	if commentID == "" {
		writeMessage(w, http.StatusNotFound, "Comment not found")
		return
	}

	comment, err := h.Store.GetComment(r.Context(), commentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Comment not found")
			return
		}
		writeServerError(w, "Something went wrong", err)
		return
	}
	if comment.UserID != identity.UserID {
		writeMessage(w, http.StatusForbidden, "You are not authorized to delete this comment")
		return
	}

	if err := h.Store.DeleteComment(r.Context(), commentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Comment not found")
			return
		}
		writeServerError(w, "Something went wrong", err)
		return
	}
	metrics.ObserveCommentEvent("delete")
	writeMessage(w, http.StatusOK, "Comment deleted successfully")
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireIdentity(w, r); !ok {
		return
	}
	videoID := pathSuffix(r, Prefix+"/comment/")
	if videoID == "" {
		writeMessage(w, http.StatusNotFound, "Video not found")
		return
	}

	comments, err := h.Store.ListCommentsByVideo(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Video not found")
			return
		}
		writeServerError(w, "Something went wrong", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"comments": comments})
}
