package storage

// CreateUserParams captures a signup request after the avatar asset has been
// provisioned. Password is the plaintext credential; the driver hashes it
// before the document is written.
type CreateUserParams struct {
	ChannelName string
	Email       string
	Phone       string
	Password    string
	LogoURL     string
	LogoID      string
}

// ProfileUpdate applies a partial update to a user document. Nil fields keep
// their stored values. LogoURL and LogoID are always set together, after the
// replacement avatar has been uploaded.
type ProfileUpdate struct {
	ChannelName *string
	Phone       *string
	LogoURL     *string
	LogoID      *string
}

// CreateVideoParams captures an upload after both remote assets succeeded.
type CreateVideoParams struct {
	Title        string
	Description  string
	UserID       string
	VideoURL     string
	VideoID      string
	ThumbnailURL string
	ThumbnailID  string
	Category     string
	Tags         []string
}

// VideoUpdate applies a partial update to a video document. Nil fields keep
// their stored values. Tags replaces the whole sequence whenever it is
// non-nil, including with an empty slice; this is the one field where
// presence, not truthiness, decides.
type VideoUpdate struct {
	Title        *string
	Description  *string
	Category     *string
	Tags         *[]string
	ThumbnailURL *string
	ThumbnailID  *string
}

// CreateCommentParams captures a new comment. The referenced video is only
// verified under Options.StrictReferences.
type CreateCommentParams struct {
	VideoID     string
	UserID      string
	CommentText string
}
