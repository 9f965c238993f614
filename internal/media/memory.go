package media

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryRelay keeps uploaded bodies in a map. It exists for tests and local
// development without an object store.
type MemoryRelay struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	counter int

	// FailUploads makes every Upload fail, for exercising the handlers'
	// failure paths.
	FailUploads bool
}

// NewMemoryRelay constructs an empty in-memory relay.
func NewMemoryRelay() *MemoryRelay {
	return &MemoryRelay{objects: make(map[string][]byte)}
}

func (r *MemoryRelay) Upload(ctx context.Context, namespace, filename, contentType string, body io.Reader, size int64) (Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailUploads {
		return Asset{}, fmt.Errorf("simulated upload failure")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return Asset{}, err
	}
	r.counter++
	handle := fmt.Sprintf("%s/%d-%s", namespace, r.counter, filename)
	r.objects[handle] = data
	return Asset{URL: "memory://" + handle, Handle: handle}, nil
}

func (r *MemoryRelay) Delete(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.objects, handle)
	r.deleted = append(r.deleted, handle)
	return nil
}

// Stored reports whether an object with the given handle is currently held.
func (r *MemoryRelay) Stored(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.objects[handle]
	return ok
}

// Deleted returns the handles passed to Delete, in order.
func (r *MemoryRelay) Deleted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.deleted...)
}

// Count returns the number of stored objects.
func (r *MemoryRelay) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects)
}
