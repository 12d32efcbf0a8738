package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "TRADELANE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv = "TRADELANE_APP_ENV"
	EnvPort   = "TRADELANE_APP_PORT"

	EnvDBDSN  = "TRADELANE_DB_DSN"
	EnvDBHost = "TRADELANE_DB_HOST"
	EnvDBUser = "TRADELANE_DB_USER"
	EnvDBName = "TRADELANE_DB_NAME"

	EnvRedisURL = "TRADELANE_REDIS_URL"

	EnvJWTSecret = "TRADELANE_JWT_SECRET"
	EnvJWTIssuer = "TRADELANE_JWT_ISSUER"

	EnvMaintenanceSecretHash  = "TRADELANE_MAINTENANCE_SECRET_HASH"
	EnvProcessorWebhookSecret = "TRADELANE_PROCESSOR_WEBHOOK_SECRET"

	EnvGCPProjectID = "TRADELANE_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic  = "TRADELANE_PUBSUB_ORDERS_TOPIC"
	EnvPubSubBillingTopic = "TRADELANE_PUBSUB_BILLING_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
