package config

const (
	// AppName is the name of the application.
	AppName = "zenorz"

	// EnvBotToken is the environment variable for the bot token.
	EnvBotToken = `BOT_TOKEN`

	// EnvApplicationId is the environment variable for the application ID.
	EnvApplicationId = `APPLICATION_ID`

	// EnvClientSecret is the environment variable for the OAuth client secret.
	EnvClientSecret = `CLIENT_SECRET`

	// EnvRedirectUri is the environment variable for the OAuth redirect URI.
	EnvRedirectUri = `REDIRECT_URI`

	// EnvMongoUri is the environment variable for the MongoDB URI.
	EnvMongoUri = `MONGO_URI`

	// EnvMonitoringPort is the environment variable for the monitoring port.
	EnvMonitoringPort = `MONITORING_PORT`

	// EnvGuildDataDir is the environment variable for the guild file storage directory.
	EnvGuildDataDir = `GUILD_DATA_DIR`
)

var (
	// BotToken is the token for the bot.
	BotToken string

	// ApplicationId is the ID of the application.
	ApplicationId string

	// ClientSecret is the OAuth client secret for the application.
	ClientSecret string

	// RedirectUri is the OAuth redirect URI for the application.
	RedirectUri string

	// MongoUri is the URI for the MongoDB database.
	MongoUri string

	// MonitoringPort is the port for the monitoring server.
	MonitoringPort string

	// GuildDataDir is the directory guild knowledge files are stored under.
	GuildDataDir string
)
