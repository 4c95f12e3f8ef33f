package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrForbidden is returned when the bot lacks the permission for an
	// action, typically a role-hierarchy problem in the guild.
	ErrForbidden = errors.New("bot lacks permission for action")

	// ErrTargetNotFound is returned when the target user or guild no longer
	// exists from Discord's point of view.
	ErrTargetNotFound = errors.New("action target not found")
)

// mapAPIError translates a discordgo REST error into the package's error
// taxonomy. Anything that is not a recognized API status is wrapped as a
// transport-level failure.
func mapAPIError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrForbidden, restErr.Error())
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrTargetNotFound, restErr.Error())
		}
		return fmt.Errorf("discord api status %d: %w", restErr.Response.StatusCode, err)
	}
	return fmt.Errorf("discord transport: %w", err)
}
