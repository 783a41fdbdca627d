package spec

import "time"

// Environment is the type for defining the running environment
type Environment string

// define constants
const (
	EnvDevelopment Environment = "Dev"
	EnvProduction  Environment = "Prod"
)

// Define constants shared by the api and the task
const (
	ProcessingTTL time.Duration = time.Minute * 5
	ProcessedTTL  time.Duration = time.Hour * 12

	VerificationTimeout time.Duration = time.Second * 10
	CacheTimeout        time.Duration = time.Second * 2

	NotificationQueue string = "google_notifications"
	EventExchange     string = "subscription_events"
)
