package ticketing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthorized is returned when the actor holds neither a support
	// role nor administrator permission.
	ErrNotAuthorized = errors.New("not authorized to act on tickets")

	// ErrTicketNotFound is returned when the expected ticket record is
	// missing or no longer in the required status.
	ErrTicketNotFound = errors.New("no ticket in the expected state")

	// ErrSetupIncomplete is returned when the guild has not completed the
	// ticket system setup.
	ErrSetupIncomplete = errors.New("guild setup has not completed")
)

// DuplicateTicketError is returned when a user already holds an active
// ticket and the guild prevents duplicates.
type DuplicateTicketError struct {
	GuildID string
	UserID  string
}

func (e *DuplicateTicketError) Error() string {
	return fmt.Sprintf("user %s already has an active ticket in guild %s", e.UserID, e.GuildID)
}

// QuotaExceededError is returned when the tier's concurrent ticket limit is
// reached. Limit is the numeric ceiling, for user-facing messaging.
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("ticket limit of %d reached for the current tier", e.Limit)
}

// ProvisioningError is returned when the channel provider failed before the
// ticket left the claimed state. The claim was reverted; retrying is safe.
type ProvisioningError struct {
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning ticket channel: %v", e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// PartialProvisionError is returned when the channel was created but the
// ticket record could not be moved to open. The channel identified by
// ChannelID is orphaned and the ticket is stuck in claimed; this wants
// operator attention rather than a blind retry.
type PartialProvisionError struct {
	ChannelID string
	Err       error
}

func (e *PartialProvisionError) Error() string {
	return fmt.Sprintf("channel %s created but ticket update failed: %v", e.ChannelID, e.Err)
}

func (e *PartialProvisionError) Unwrap() error { return e.Err }
