package links

import "time"

// Link is a servable download link: the decoded token pair plus its expiry.
type Link struct {
	Token    string
	UserID   int64
	FileID   int64
	ExpireAt time.Time
	URL      string
}

// CreateLinkRequest carries the parameters for minting or refreshing a link.
type CreateLinkRequest struct {
	UserID int64
	FileID int64
	TTL    *time.Duration // nil means the service default
}
