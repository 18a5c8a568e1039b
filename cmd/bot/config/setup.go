package config

import (
	"log/slog"
	"os"

	"github.com/zenorz/zenorz/pkg/dataaccess"
	"github.com/zenorz/zenorz/pkg/dataaccess/connection"
	"github.com/zenorz/zenorz/pkg/logging"
)

func Parse(l *slog.Logger) {
	if envBT := os.Getenv(EnvBotToken); envBT != "" {
		l.Debug("Found bot token in environment", slog.String("key", EnvBotToken))
		BotToken = envBT
	}

	if envAppId := os.Getenv(EnvApplicationId); envAppId != "" {
		l.Debug("Found application ID in environment", slog.String("key", EnvApplicationId))
		ApplicationId = envAppId
	}

	if envSecret := os.Getenv(EnvClientSecret); envSecret != "" {
		l.Debug("Found client secret in environment", slog.String("key", EnvClientSecret))
		ClientSecret = envSecret
	}

	if envRedirect := os.Getenv(EnvRedirectUri); envRedirect != "" {
		l.Debug("Found redirect URI in environment", slog.String("key", EnvRedirectUri))
		RedirectUri = envRedirect
	}

	if envMongoUri := os.Getenv(EnvMongoUri); envMongoUri != "" {
		l.Debug("Found MongoDB URI in environment", slog.String("key", EnvMongoUri))
		MongoUri = envMongoUri
	}

	if envMonitoringPort := os.Getenv(EnvMonitoringPort); envMonitoringPort != "" {
		l.Debug("Found monitoring port in environment", slog.String("key", EnvMonitoringPort))
		MonitoringPort = envMonitoringPort
	} else {
		// Default to 8080 if not provided.
		MonitoringPort = "8080"

		l.Info("No monitoring port provided in environment, defaulting to 8080", slog.String("key", EnvMonitoringPort))
	}

	if envDataDir := os.Getenv(EnvGuildDataDir); envDataDir != "" {
		l.Debug("Found guild data directory in environment", slog.String("key", EnvGuildDataDir))
		GuildDataDir = envDataDir
	} else {
		// Default to a local data directory if not provided.
		GuildDataDir = "data"

		l.Info("No guild data directory provided in environment, defaulting to ./data", slog.String("key", EnvGuildDataDir))
	}

	if BotToken != "" &&
		ApplicationId != "" &&
		MongoUri != "" {

		// All required environment variables have been provided.
		l.Debug("All required environment variables have been provided")
		connectMongo(l)
		return
	}

	l.Error("Not all required environment variables have been provided", slog.String(logging.KeyError, "incomplete configuration"))
	os.Exit(1)
}

func connectMongo(l *slog.Logger) {
	mongoConn := new(connection.MongoDB)
	mongoConn.ConnectionString = MongoUri

	db, err := mongoConn.Connect()
	if err != nil {
		l.Error("Error connecting to mongo", slog.String(logging.KeyError, err.Error()))
		os.Exit(1)
	} else if db == nil {
		l.Error("MongoDB came back nil", slog.String(logging.KeyError, "MongoDB came back nil"))
		os.Exit(1)
	}

	dataaccess.MongoDB = db

	l.Debug("Connected to MongoDB", slog.String("key", EnvMongoUri))
}
