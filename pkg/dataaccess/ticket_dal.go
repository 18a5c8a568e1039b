package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zenorz/zenorz/pkg/dataaccess/monitoring"
	"github.com/zenorz/zenorz/pkg/entities"
	"github.com/zenorz/zenorz/pkg/logging"
	"github.com/zenorz/zenorz/pkg/ticketing"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ticketDalName = "ticket_dal"

// TicketDal is the Mongo-backed ticket store. It satisfies
// ticketing.TicketStore, plus index management for startup.
type TicketDal interface {
	ticketing.TicketStore

	// EnsureIndexes creates the indexes the lifecycle's guarantees rest
	// on, most importantly the unique partial index that enforces the
	// one-active-ticket invariant at write time.
	EnsureIndexes(ctx context.Context) error
}

type ticketDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewTicketDal creates a new ticket data access layer.
func NewTicketDal() TicketDal {
	l := slog.Default().With(slog.String(logging.KeyDal, ticketDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &ticketDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (d *ticketDalImpl) collection() *mongo.Collection {
	return d.client.Database(mongoDatabase).Collection(ticketsCollection)
}

// observe starts the prometheus metrics for a query and returns the timer.
func (d *ticketDalImpl) observe(query string) *prometheus.Timer {
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, query, mongoDatabase, ticketsCollection).Inc()
	return prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, query, mongoDatabase, ticketsCollection))
}

func (d *ticketDalImpl) EnsureIndexes(ctx context.Context) error {
	t := d.observe("ensure_indexes")
	defer t.ObserveDuration()

	_, err := d.collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// The write-time duplicate guard: at most one document per
			// active key may be active at a time.
			Keys: bson.D{{Key: "active_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{
			Keys: bson.D{{Key: "guild_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "channel_id", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("error creating ticket indexes: %w", err)
	}
	return nil
}

func (d *ticketDalImpl) CreateTicket(ctx context.Context, ticket *entities.Ticket) error {
	t := d.observe("create_ticket")
	defer t.ObserveDuration()

	_, err := d.collection().InsertOne(ctx, ticket)
	if mongo.IsDuplicateKeyError(err) {
		// The unique active index fired: the user already holds an active
		// ticket and this guild prevents duplicates.
		return &ticketing.DuplicateTicketError{GuildID: ticket.GuildID, UserID: ticket.UserID}
	}
	if err != nil {
		return fmt.Errorf("error inserting ticket: %w", err)
	}
	return nil
}

func (d *ticketDalImpl) FindActiveTicket(ctx context.Context, guildID, userID string) (*entities.Ticket, error) {
	t := d.observe("find_active_ticket")
	defer t.ObserveDuration()

	ticket := new(entities.Ticket)
	err := d.collection().FindOne(ctx, bson.M{
		"guild_id": guildID,
		"user_id":  userID,
		"active":   true,
	}).Decode(ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting active ticket: %w", err)
	}
	return ticket, nil
}

func (d *ticketDalImpl) CountActiveTickets(ctx context.Context, guildID, userID string) (int64, error) {
	t := d.observe("count_active_tickets")
	defer t.ObserveDuration()

	count, err := d.collection().CountDocuments(ctx, bson.M{
		"guild_id": guildID,
		"user_id":  userID,
		"active":   true,
	})
	if err != nil {
		return 0, fmt.Errorf("error counting active tickets: %w", err)
	}
	return count, nil
}

func (d *ticketDalImpl) FindPendingTicket(ctx context.Context, guildID, userID string) (*entities.Ticket, error) {
	t := d.observe("find_pending_ticket")
	defer t.ObserveDuration()

	ticket := new(entities.Ticket)
	err := d.collection().FindOne(ctx, bson.M{
		"guild_id": guildID,
		"user_id":  userID,
		"status":   entities.TicketPending,
	}).Decode(ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting pending ticket: %w", err)
	}
	return ticket, nil
}

func (d *ticketDalImpl) GetTicketByChannelID(ctx context.Context, channelID string) (*entities.Ticket, error) {
	t := d.observe("get_ticket_by_channel")
	defer t.ObserveDuration()

	ticket := new(entities.Ticket)
	err := d.collection().FindOne(ctx, bson.M{"channel_id": channelID}).Decode(ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}
	return ticket, nil
}

// setDoc builds the $set document for a transition, keeping the derived
// active flag in lockstep with the new status.
func setDoc(to entities.TicketStatus, set map[string]any) bson.M {
	doc := bson.M{
		"status": to,
		"active": to.Active(),
	}
	for k, v := range set {
		doc[k] = v
	}
	return doc
}

func (d *ticketDalImpl) TransitionStatus(ctx context.Context, guildID, userID string, from, to entities.TicketStatus, set map[string]any) (bool, error) {
	t := d.observe("transition_status")
	defer t.ObserveDuration()

	// Conditional on the expected prior status: of two concurrent actors,
	// only one write can match.
	res, err := d.collection().UpdateOne(ctx, bson.M{
		"guild_id": guildID,
		"user_id":  userID,
		"status":   from,
	}, bson.M{"$set": setDoc(to, set)})
	if err != nil {
		return false, fmt.Errorf("error transitioning ticket: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (d *ticketDalImpl) TransitionStatusByChannel(ctx context.Context, channelID string, from []entities.TicketStatus, to entities.TicketStatus, set map[string]any) (*entities.Ticket, error) {
	t := d.observe("transition_status_by_channel")
	defer t.ObserveDuration()

	ticket := new(entities.Ticket)
	err := d.collection().FindOneAndUpdate(ctx, bson.M{
		"channel_id": channelID,
		"status":     bson.M{"$in": from},
	}, bson.M{"$set": setDoc(to, set)}).Decode(ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error transitioning ticket: %w", err)
	}
	return ticket, nil
}
