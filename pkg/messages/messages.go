package messages

const (
	// ErrUserErrorProcessing is the generic response for an unexpected error.
	ErrUserErrorProcessing = "Something went wrong processing your request. Please try again later."

	// ErrUserNotSetup is the response when the ticket system has not been configured.
	ErrUserNotSetup = "The ticket system has not been set up for this server yet. Ask an administrator to run /setup."

	// ErrUserNotAuthorized is the response when the actor lacks a support role.
	ErrUserNotAuthorized = "You are not authorized to perform this action on tickets."

	// ErrUserDuplicateTicket is the response for the one-active-ticket invariant.
	ErrUserDuplicateTicket = "You already have an open or pending ticket. Please wait for support to handle it first."

	// ErrUserNoPendingTicket is the response when no pending ticket exists for the target.
	ErrUserNoPendingTicket = "No pending ticket was found for this user. It may already have been handled."

	// UserTicketSubmitted is the acknowledgement for a new ticket request.
	UserTicketSubmitted = "Your ticket request has been submitted. Please wait for a support member to review it."

	// UserTicketClosed is the acknowledgement for closing a ticket channel.
	UserTicketClosed = "This ticket has been closed. The channel will be removed shortly."
)
