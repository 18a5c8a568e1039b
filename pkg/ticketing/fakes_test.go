package ticketing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zenorz/zenorz/pkg/custom"
	"github.com/zenorz/zenorz/pkg/entities"
)

// fakeGuilds serves guild configs from a map.
type fakeGuilds struct {
	guilds map[string]*entities.Guild
}

func (f *fakeGuilds) GetGuildByID(_ context.Context, id string) (*entities.Guild, error) {
	return f.guilds[id], nil
}

// fakeTickets is an in-memory TicketStore with the same conditional-write
// and write-time uniqueness semantics the Mongo DAL provides.
type fakeTickets struct {
	mu      sync.Mutex
	tickets []*entities.Ticket

	// failTransitionTo makes TransitionStatus to the given status fail,
	// for exercising the partial-provision path.
	failTransitionTo entities.TicketStatus
}

func (f *fakeTickets) CreateTicket(_ context.Context, ticket *entities.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.Active && t.ActiveKey == ticket.ActiveKey {
			return &DuplicateTicketError{GuildID: ticket.GuildID, UserID: ticket.UserID}
		}
	}
	cp := *ticket
	f.tickets = append(f.tickets, &cp)
	return nil
}

func (f *fakeTickets) FindActiveTicket(_ context.Context, guildID, userID string) (*entities.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.GuildID == guildID && t.UserID == userID && t.Active {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeTickets) CountActiveTickets(_ context.Context, guildID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.tickets {
		if t.GuildID == guildID && t.UserID == userID && t.Active {
			n++
		}
	}
	return n, nil
}

func (f *fakeTickets) FindPendingTicket(_ context.Context, guildID, userID string) (*entities.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.GuildID == guildID && t.UserID == userID && t.Status == entities.TicketPending {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeTickets) GetTicketByChannelID(_ context.Context, channelID string) (*entities.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.ChannelID == channelID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeTickets) apply(t *entities.Ticket, to entities.TicketStatus, set map[string]any) {
	t.Status = to
	t.Active = to.Active()
	for k, v := range set {
		switch k {
		case "channel_id":
			t.ChannelID = v.(string)
		case "ticket_id":
			t.TicketID = v.(string)
		case "resolved_at":
			t.ResolvedAt = v.(custom.Datetime)
		case "escalated_to_staff":
			t.EscalatedToStaff = v.(bool)
		}
	}
}

func (f *fakeTickets) TransitionStatus(_ context.Context, guildID, userID string, from, to entities.TicketStatus, set map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTransitionTo == to {
		return false, fmt.Errorf("store unavailable")
	}
	for _, t := range f.tickets {
		if t.GuildID == guildID && t.UserID == userID && t.Status == from {
			f.apply(t, to, set)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTickets) TransitionStatusByChannel(_ context.Context, channelID string, from []entities.TicketStatus, to entities.TicketStatus, set map[string]any) (*entities.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		for _, s := range from {
			if t.ChannelID == channelID && t.Status == s {
				prior := *t
				f.apply(t, to, set)
				return &prior, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeTickets) get(guildID, userID string) *entities.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.GuildID == guildID && t.UserID == userID {
			return t
		}
	}
	return nil
}

// fakeProvisioner records provider calls.
type fakeProvisioner struct {
	mu         sync.Mutex
	createErr  error
	created    []ProvisionRequest
	nextID     int
	visibility map[string]bool // channelID:userID -> visible
	deletes    []scheduledDelete
}

type scheduledDelete struct {
	channelID string
	delay     time.Duration
}

func (f *fakeProvisioner) Create(_ context.Context, req ProvisionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	f.created = append(f.created, req)
	return fmt.Sprintf("chan-%d", f.nextID), nil
}

func (f *fakeProvisioner) SetUserVisibility(_ context.Context, channelID, userID string, visible bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visibility == nil {
		f.visibility = make(map[string]bool)
	}
	f.visibility[channelID+":"+userID] = visible
	return nil
}

func (f *fakeProvisioner) ScheduleDelete(channelID, _ string, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, scheduledDelete{channelID: channelID, delay: delay})
}

// fakeSink records notifications. failAll makes every method error, to
// prove notification failures never affect transitions.
type fakeSink struct {
	mu       sync.Mutex
	failAll  bool
	dms      map[string][]string
	approval int
	audits   []string
	posts    map[string][]string
}

func (f *fakeSink) err() error {
	if f.failAll {
		return fmt.Errorf("notification channel unavailable")
	}
	return nil
}

func (f *fakeSink) NotifyUser(_ context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	if f.dms == nil {
		f.dms = make(map[string][]string)
	}
	f.dms[userID] = append(f.dms[userID], content)
	return nil
}

func (f *fakeSink) NotifyApproval(_ context.Context, _ *entities.Guild, _ *entities.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	f.approval++
	return nil
}

func (f *fakeSink) NotifyAuditLog(_ context.Context, _ *entities.Guild, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	f.audits = append(f.audits, content)
	return nil
}

func (f *fakeSink) PostTicketMessage(_ context.Context, channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	if f.posts == nil {
		f.posts = make(map[string][]string)
	}
	f.posts[channelID] = append(f.posts[channelID], content)
	return nil
}
