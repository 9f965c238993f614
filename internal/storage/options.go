package storage

// Options tunes behaviour shared by every Repository driver.
type Options struct {
	// StrictReferences controls foreign-key checking on writes that
	// reference a video without owning it. When false (the default),
	// liking, disliking, or commenting on a video that does not exist
	// silently no-ops or writes a dangling reference. When true those
	// operations fail with ErrNotFound instead.
	StrictReferences bool
}
