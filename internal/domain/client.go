package domain

import (
	"errors"
	"time"
)

const (
	// UnknownUser is the display name before a join completes.
	UnknownUser = "Unknown User"

	MaxUsernameLen = 64
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// Client is a participant's metadata as the broker sees it.
type Client struct {
	Username    string    `json:"username"`
	ConnectedAt time.Time `json:"connectedAt"`
}

func (c *Client) SetUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	c.Username = username
	return nil
}
