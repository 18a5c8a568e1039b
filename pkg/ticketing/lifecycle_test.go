package ticketing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenorz/zenorz/pkg/entities"
	"github.com/zenorz/zenorz/pkg/logging"
)

const (
	testGuildID = "guild-1"
	testUserID  = "user-1"
	testStaffID = "staff-1"
)

type lifecycleFixture struct {
	lc       *Lifecycle
	guilds   *fakeGuilds
	tickets  *fakeTickets
	channels *fakeProvisioner
	sink     *fakeSink
	staff    Actor
}

func newLifecycleFixture(t *testing.T, tier entities.Tier) *lifecycleFixture {
	t.Helper()

	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err)

	guilds := &fakeGuilds{guilds: map[string]*entities.Guild{
		testGuildID: {
			ID:               testGuildID,
			Name:             "Test Guild",
			SupportTeamRoles: []string{"support-role"},
			Channels: entities.GuildChannels{
				TicketChannel:  "intake-chan",
				TicketRequests: "requests-chan",
				TicketLogs:     "logs-chan",
				TicketCategory: "category-1",
			},
			Premium:                 entities.Premium{Tier: tier},
			PreventDuplicateTickets: true,
			SetupCompleted:          true,
		},
	}}
	tickets := new(fakeTickets)
	channels := new(fakeProvisioner)
	sink := new(fakeSink)

	return &lifecycleFixture{
		lc:       NewLifecycle(l, guilds, tickets, channels, sink, 50*time.Millisecond),
		guilds:   guilds,
		tickets:  tickets,
		channels: channels,
		sink:     sink,
		staff:    Actor{ID: testStaffID, RoleIDs: []string{"support-role"}},
	}
}

func TestCreatePending(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		ticket, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "printer broken")
		require.NoError(t, err)

		require.Equal(t, entities.TicketPending, ticket.Status)
		require.Equal(t, entities.ChannelIDNone, ticket.ChannelID)
		require.Equal(t, entities.ChannelIDNone, ticket.TicketID)
		require.Equal(t, "printer broken", ticket.Query)
		require.True(t, ticket.Active)
		require.False(t, ticket.CreatedAt.IsZero())
		require.True(t, ticket.ResolvedAt.IsZero())

		// Staff prompt and requester DM both fired.
		assert.Equal(t, 1, f.sink.approval)
		assert.Len(t, f.sink.dms[testUserID], 1)
	})

	t.Run("SetupIncomplete", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)
		f.guilds.guilds[testGuildID].SetupCompleted = false

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.ErrorIs(t, err, ErrSetupIncomplete)
	})

	t.Run("UnknownGuild", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, "nope", testUserID, "marcy", "help")
		require.ErrorIs(t, err, ErrSetupIncomplete)
	})

	t.Run("DuplicateWhilePending", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "first")
		require.NoError(t, err)

		_, err = f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "second")
		dup := new(DuplicateTicketError)
		require.True(t, errors.As(err, &dup))

		// No second record was created.
		count, err := f.tickets.CountActiveTickets(ctx, testGuildID, testUserID)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)
	})

	t.Run("DuplicateWhileOpen", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "first")
		require.NoError(t, err)
		_, err = f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		require.NoError(t, err)

		_, err = f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "second")
		dup := new(DuplicateTicketError)
		require.True(t, errors.As(err, &dup))
	})

	t.Run("DuplicatesAllowedWhenDisabled", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)
		f.guilds.guilds[testGuildID].PreventDuplicateTickets = false

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "first")
		require.NoError(t, err)

		_, err = f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "second")
		require.NoError(t, err)

		count, err := f.tickets.CountActiveTickets(ctx, testGuildID, testUserID)
		require.NoError(t, err)
		require.EqualValues(t, 2, count)
	})

	t.Run("FreeTierQuota", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)
		f.guilds.guilds[testGuildID].PreventDuplicateTickets = false

		for i := 0; i < 10; i++ {
			_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "issue")
			require.NoError(t, err)
		}

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "eleventh")
		quotaErr := new(QuotaExceededError)
		require.True(t, errors.As(err, &quotaErr))
		require.Equal(t, 10, quotaErr.Limit)
	})

	t.Run("NotificationFailureDoesNotFailIntake", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)
		f.sink.failAll = true

		ticket, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)
		require.Equal(t, entities.TicketPending, ticket.Status)
	})
}

func TestAccept(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "printer broken")
		require.NoError(t, err)

		ticket, err := f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		require.NoError(t, err)

		require.Equal(t, entities.TicketOpen, ticket.Status)
		require.NotEqual(t, entities.ChannelIDNone, ticket.ChannelID)
		require.Equal(t, ticket.ChannelID, ticket.TicketID)

		// The channel was provisioned with the right scoping.
		require.Len(t, f.channels.created, 1)
		req := f.channels.created[0]
		assert.Equal(t, testUserID, req.RequesterID)
		assert.Equal(t, []string{"support-role"}, req.SupportRoles)
		assert.Equal(t, "category-1", req.ParentCategory)
		assert.Equal(t, "marcy-ticket", req.Name)

		// The original query landed in the new channel verbatim.
		require.Contains(t, f.sink.posts[ticket.ChannelID], "printer broken")
	})

	t.Run("NotAuthorized", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)

		_, err = f.lc.Accept(ctx, testGuildID, Actor{ID: "rando", RoleIDs: []string{"other"}}, testUserID)
		require.ErrorIs(t, err, ErrNotAuthorized)
		require.Empty(t, f.channels.created)
	})

	t.Run("AdministratorWithoutRole", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)

		_, err = f.lc.Accept(ctx, testGuildID, Actor{ID: "admin", Administrator: true}, testUserID)
		require.NoError(t, err)
	})

	t.Run("NoPendingTicket", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		require.ErrorIs(t, err, ErrTicketNotFound)
	})

	t.Run("IdempotentUnderRetry", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)

		_, err = f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		require.NoError(t, err)

		// The re-entrant button press: the ticket is no longer pending, so
		// the second accept fails and no second channel is created.
		_, err = f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		require.ErrorIs(t, err, ErrTicketNotFound)
		require.Len(t, f.channels.created, 1)
	})

	t.Run("ProvisioningFailureRevertsClaim", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)
		f.channels.createErr = errors.New("missing permissions")

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)

		_, err = f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		provErr := new(ProvisioningError)
		require.True(t, errors.As(err, &provErr))

		// The ticket went back to pending, so a retry can succeed.
		f.channels.createErr = nil
		ticket, err := f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		require.NoError(t, err)
		require.Equal(t, entities.TicketOpen, ticket.Status)
	})

	t.Run("PartialProvisionSurfacedDistinctly", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)
		f.tickets.failTransitionTo = entities.TicketOpen

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)

		_, err = f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		partial := new(PartialProvisionError)
		require.True(t, errors.As(err, &partial))
		require.NotEmpty(t, partial.ChannelID)

		// Exactly one channel exists; the record is stuck in claimed, not
		// silently reverted, so staff can reconcile.
		require.Len(t, f.channels.created, 1)
		require.Equal(t, entities.TicketClaimed, f.tickets.get(testGuildID, testUserID).Status)
	})

	t.Run("QuotaRecheckedAtAccept", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)

		// The count moved between intake and accept.
		for i := 0; i < 10; i++ {
			f.tickets.tickets = append(f.tickets.tickets, &entities.Ticket{
				GuildID: testGuildID,
				UserID:  testUserID,
				Status:  entities.TicketOpen,
				Active:  true,
			})
		}

		_, err = f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		quotaErr := new(QuotaExceededError)
		require.True(t, errors.As(err, &quotaErr))
		require.Empty(t, f.channels.created)
	})
}

func TestReject(t *testing.T) {
	ctx := context.Background()

	t.Run("ImmediateOnFreeTier", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)

		reasonRequired, err := f.lc.BeginReject(ctx, testGuildID, f.staff, testUserID)
		require.NoError(t, err)
		require.False(t, reasonRequired)

		require.NoError(t, f.lc.Reject(ctx, testGuildID, f.staff, testUserID, ""))

		got := f.tickets.get(testGuildID, testUserID)
		require.Equal(t, entities.TicketClosed, got.Status)
		require.False(t, got.ResolvedAt.IsZero())
		require.False(t, got.Active)
		// No channel was ever created.
		require.Empty(t, f.channels.created)
	})

	t.Run("TwoPhaseOnProTier", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierPro)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)

		reasonRequired, err := f.lc.BeginReject(ctx, testGuildID, f.staff, testUserID)
		require.NoError(t, err)
		require.True(t, reasonRequired)

		// The ticket stays pending until the reason round-trip completes.
		require.Equal(t, entities.TicketPending, f.tickets.get(testGuildID, testUserID).Status)

		require.NoError(t, f.lc.Reject(ctx, testGuildID, f.staff, testUserID, "duplicate of an existing report"))

		got := f.tickets.get(testGuildID, testUserID)
		require.Equal(t, entities.TicketClosed, got.Status)
		require.False(t, got.ResolvedAt.IsZero())

		// The reason made it into the rejection notifications.
		require.Len(t, f.sink.dms[testUserID], 2) // intake ack + rejection
		assert.Contains(t, f.sink.dms[testUserID][1], "duplicate of an existing report")
		require.NotEmpty(t, f.sink.audits)
		assert.Contains(t, f.sink.audits[len(f.sink.audits)-1], "duplicate of an existing report")
	})

	t.Run("NotAuthorized", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)

		_, err = f.lc.BeginReject(ctx, testGuildID, Actor{ID: "rando"}, testUserID)
		require.ErrorIs(t, err, ErrNotAuthorized)

		err = f.lc.Reject(ctx, testGuildID, Actor{ID: "rando"}, testUserID, "")
		require.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("AlreadyHandled", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)
		_, err = f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		require.NoError(t, err)

		err = f.lc.Reject(ctx, testGuildID, f.staff, testUserID, "")
		require.ErrorIs(t, err, ErrTicketNotFound)
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)
		opened, err := f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		require.NoError(t, err)

		closed, err := f.lc.Close(ctx, opened.ChannelID, f.staff)
		require.NoError(t, err)
		require.NotNil(t, closed)

		got := f.tickets.get(testGuildID, testUserID)
		require.Equal(t, entities.TicketClosed, got.Status)
		require.False(t, got.ResolvedAt.IsZero())
		require.False(t, got.Active)

		// The requester's view permission was revoked immediately and the
		// channel deletion was scheduled with the configured delay.
		require.Equal(t, false, f.channels.visibility[opened.ChannelID+":"+testUserID])
		require.Len(t, f.channels.deletes, 1)
		require.Equal(t, opened.ChannelID, f.channels.deletes[0].channelID)
		require.Equal(t, 50*time.Millisecond, f.channels.deletes[0].delay)
	})

	t.Run("NoMatchingTicketIsANoOp", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		closed, err := f.lc.Close(ctx, "stray-channel", f.staff)
		require.NoError(t, err)
		require.Nil(t, closed)

		// The channel is still removed even though no record was mutated.
		require.Len(t, f.channels.deletes, 1)
		require.Equal(t, "stray-channel", f.channels.deletes[0].channelID)
	})

	t.Run("SecondCloseNoOp", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)
		opened, err := f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		require.NoError(t, err)

		_, err = f.lc.Close(ctx, opened.ChannelID, f.staff)
		require.NoError(t, err)

		closed, err := f.lc.Close(ctx, opened.ChannelID, f.staff)
		require.NoError(t, err)
		require.Nil(t, closed)
	})
}

func TestEscalate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)
		opened, err := f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		require.NoError(t, err)

		escalated, err := f.lc.Escalate(ctx, opened.ChannelID, f.staff)
		require.NoError(t, err)
		require.Equal(t, entities.TicketEscalated, escalated.Status)
		require.True(t, escalated.EscalatedToStaff)

		got := f.tickets.get(testGuildID, testUserID)
		require.Equal(t, entities.TicketEscalated, got.Status)
		require.True(t, got.EscalatedToStaff)
	})

	t.Run("NotAuthorized", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)
		opened, err := f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		require.NoError(t, err)

		_, err = f.lc.Escalate(ctx, opened.ChannelID, Actor{ID: "rando"})
		require.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("EscalatedChannelCanStillClose", func(t *testing.T) {
		f := newLifecycleFixture(t, entities.TierFree)

		_, err := f.lc.CreatePending(ctx, testGuildID, testUserID, "marcy", "help")
		require.NoError(t, err)
		opened, err := f.lc.Accept(ctx, testGuildID, f.staff, testUserID)
		require.NoError(t, err)
		_, err = f.lc.Escalate(ctx, opened.ChannelID, f.staff)
		require.NoError(t, err)

		closed, err := f.lc.Close(ctx, opened.ChannelID, f.staff)
		require.NoError(t, err)
		require.NotNil(t, closed)
		require.Equal(t, entities.TicketClosed, f.tickets.get(testGuildID, testUserID).Status)
	})
}
