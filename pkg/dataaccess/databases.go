package dataaccess

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoDB is the Mongo client. This is a connection pool.
var MongoDB *mongo.Client

const mongoDatabase = "zenorz"

const (
	// guildsCollection holds one configuration document per guild.
	guildsCollection = "guilds"

	// ticketsCollection holds the durable ticket state machine records.
	ticketsCollection = "tickets"
)
