package config

const (
	EnvPrefix = "GROCERYMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                  = "GROCERYMART_APP_ENV"
	EnvPort                    = "GROCERYMART_APP_PORT"
	EnvDBDSN                   = "GROCERYMART_DB_DSN"
	EnvDBHost                  = "GROCERYMART_DB_HOST"
	EnvDBUser                  = "GROCERYMART_DB_USER"
	EnvDBName                  = "GROCERYMART_DB_NAME"
	EnvRedisURL                = "GROCERYMART_REDIS_URL"
	EnvJWTSecret               = "GROCERYMART_JWT_SECRET"
	EnvJWTIssuer               = "GROCERYMART_JWT_ISSUER"
	EnvJWTExpMins              = "GROCERYMART_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes  = "GROCERYMART_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID            = "GROCERYMART_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic       = "GROCERYMART_PUBSUB_ORDERS_TOPIC"
	EnvPubSubCatalogTopic      = "GROCERYMART_PUBSUB_CATALOG_TOPIC"
	EnvPubSubNotificationSub   = "GROCERYMART_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubOfferNotifySub    = "GROCERYMART_PUBSUB_OFFER_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubAnalyticsSub      = "GROCERYMART_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvOrderStatusPolicy       = "GROCERYMART_ORDER_STATUS_POLICY"
	EnvPricingDeliveryFeeCents = "GROCERYMART_PRICING_DELIVERY_FEE_CENTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

// Order status policies accepted by OrdersConfig.StatusPolicy.
const (
	StatusPolicyStrict     = "strict"
	StatusPolicyPermissive = "permissive"
)
