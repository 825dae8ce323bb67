// Package tokencodec converts a (userID, fileID) pair into an opaque, URL-safe token
// and back. Tokens are hashids salted with the board name, so they are
// deterministic per board and not sequential, but they are not signed: anyone
// holding the board name can mint them.
// A Codec is safe for concurrent use.
package tokencodec

import (
	"errors"

	"github.com/speps/go-hashids/v2"
)

var (
	ErrInvalid    = errors.New("invalid token")
	ErrNegative   = errors.New("ids must be non-negative")
	ErrEmptyBoard = errors.New("board name cannot be empty")
)

// Option configures a Codec.
type Option func(*hashids.HashIDData)

// WithMinLength pads tokens to at least n characters. The default of zero
// matches tokens already handed out by boards using plain hashids.
func WithMinLength(n int) Option {
	return func(d *hashids.HashIDData) {
		if n > 0 {
			d.MinLength = n
		}
	}
}

// Codec encodes and decodes link tokens for one board.
type Codec struct {
	h *hashids.HashID
}

// New returns a Codec salted with boardName.
func New(boardName string, opts ...Option) (*Codec, error) {
	if boardName == "" {
		return nil, ErrEmptyBoard
	}

	data := hashids.NewData()
	data.Salt = boardName
	for _, opt := range opts {
		opt(data)
	}

	h, err := hashids.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return &Codec{h: h}, nil
}

// Encode returns the token for the pair. The same pair always yields the same token.
func (c *Codec) Encode(userID, fileID int64) (string, error) {
	if userID < 0 || fileID < 0 {
		return "", ErrNegative
	}
	return c.h.EncodeInt64([]int64{userID, fileID})
}

// Decode recovers the pair from token. It fails with ErrInvalid unless the token
// holds exactly two ids and is the canonical encoding of them. Decode does not
// say anything about whether a link for the pair was ever created.
func (c *Codec) Decode(token string) (userID, fileID int64, err error) {
	if token == "" {
		return 0, 0, ErrInvalid
	}

	nums, err := c.h.DecodeInt64WithError(token)
	if err != nil || len(nums) != 2 || nums[0] < 0 || nums[1] < 0 {
		return 0, 0, ErrInvalid
	}

	// Only our own output is valid; padding variants of a token are rejected.
	canonical, err := c.h.EncodeInt64(nums)
	if err != nil || canonical != token {
		return 0, 0, ErrInvalid
	}

	return nums[0], nums[1], nil
}
