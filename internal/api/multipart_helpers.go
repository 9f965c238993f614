package api

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"clipriver/internal/media"
	"clipriver/internal/observability/metrics"
)

// maxMultipartMemory bounds how much of a multipart body is buffered in
// memory before spilling to temp files.
const maxMultipartMemory = 32 << 20

type formFile struct {
	file   multipart.File
	header *multipart.FileHeader
}

// openFormFile returns the named multipart file, or (nil, nil) when the
// field is absent so callers can treat attachments as optional. A
// urlencoded body cannot carry files at all, so ErrNotMultipart counts as
// absent too.
func openFormFile(r *http.Request, field string) (*formFile, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("read form file %q: %w", field, err)
	}
	return &formFile{file: file, header: header}, nil
}

func (f *formFile) Close() {
	if f != nil && f.file != nil {
		_ = f.file.Close()
	}
}

func (f *formFile) contentType() string {
	if f == nil || f.header == nil {
		return ""
	}
	if ct := strings.TrimSpace(f.header.Header.Get("Content-Type")); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// uploadFormFile streams the attachment through the media relay under the
// given namespace.
func (h *Handler) uploadFormFile(ctx context.Context, namespace string, f *formFile) (media.Asset, error) {
	metrics.ObserveMediaAttempt("upload")
	asset, err := h.Media.Upload(ctx, namespace, f.header.Filename, f.contentType(), f.file, f.header.Size)
	if err != nil {
		metrics.ObserveMediaFailure("upload")
	}
	return asset, err
}

// formValue reads an ordinary form field from an already-parsed form.
func formValue(r *http.Request, field string) string {
	return strings.TrimSpace(r.FormValue(field))
}

// optionalFormValue returns a pointer only when the field was present in the
// submitted form, preserving the distinction between "absent" and "empty".
func optionalFormValue(r *http.Request, field string) *string {
	var values []string
	if r.MultipartForm != nil {
		values = r.MultipartForm.Value[field]
	}
	if values == nil && r.PostForm != nil {
		values = r.PostForm[field]
	}
	if len(values) == 0 {
		return nil
	}
	value := strings.TrimSpace(values[0])
	return &value
}
