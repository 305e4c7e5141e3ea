package smartsheet

import (
	"context"
	"log/slog"
)

// GetCurrentUser returns the account the bearer token belongs to. Used for
// proactive session validation and the whoami command.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, "/users/me", &user); err != nil {
		return nil, err
	}

	c.logger.Debug("authenticated user", slog.String("email", user.Email))

	return &user, nil
}
