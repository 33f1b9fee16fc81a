package config

import (
	"net"
	"time"
)

const (
	// AppName is the name of the application.
	AppName = "kennel"

	// EnvBotToken is the environment variable for the bot token.
	EnvBotToken = `BOT_TOKEN`

	// EnvApplicationId is the environment variable for the application ID.
	EnvApplicationId = `APPLICATION_ID`

	// EnvMongoUri is the environment variable for the MongoDB URI.
	EnvMongoUri = `MONGO_URI`

	// EnvMongoDatabase is the environment variable for the MongoDB database name.
	EnvMongoDatabase = `MONGO_DATABASE`

	// EnvHttpPort is the environment variable for the port of the API, metrics and health server.
	EnvHttpPort = `HTTP_PORT`

	// EnvLogLevel is the environment variable for the log level.
	EnvLogLevel = `LOG_LEVEL`

	// EnvTicketDeleteDelay is the environment variable for how long a closed ticket's channel is kept.
	EnvTicketDeleteDelay = `TICKET_DELETE_DELAY`

	// EnvProviderTimeout is the environment variable for the timeout of each Discord API call.
	EnvProviderTimeout = `PROVIDER_TIMEOUT`

	// EnvApiRateLimit is the environment variable for the API requests allowed per second per client.
	EnvApiRateLimit = `API_RATE_LIMIT`

	// EnvApiTrustedProxies is the environment variable for the comma separated proxy addresses or ranges whose
	// X-Forwarded-For header is trusted.
	EnvApiTrustedProxies = `API_TRUSTED_PROXIES`

	// EnvFile is the optional file the environment is loaded from.
	EnvFile = `.env`
)

const (
	defaultHttpPort        = "8080"
	defaultDeleteDelay     = 5 * time.Minute
	defaultProviderTimeout = 15 * time.Second
	defaultApiRateLimit    = 10
)

// Config is the configuration of the application.
type Config struct {
	// BotToken is the token for the bot.
	BotToken string

	// ApplicationId is the ID of the application.
	ApplicationId string

	// MongoUri is the URI for the MongoDB database. When empty tickets are stored in memory.
	MongoUri string

	// MongoDatabase is the name of the MongoDB database.
	MongoDatabase string

	// HttpPort is the port the API, metrics and health server listens on.
	HttpPort string

	// TicketDeleteDelay is how long a closed ticket's channel is kept before it is deleted.
	TicketDeleteDelay time.Duration

	// ProviderTimeout bounds each Discord API call.
	ProviderTimeout time.Duration

	// ApiRateLimit is the API requests allowed per second per client. Zero disables the limit.
	ApiRateLimit float64

	// ApiTrustedProxies are the proxies whose X-Forwarded-For header identifies API clients.
	ApiTrustedProxies []*net.IPNet
}
