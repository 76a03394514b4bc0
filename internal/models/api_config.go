package models

// APIType separates plain request/response endpoints from streaming ones.
type APIType string

const (
	APITypeREST   APIType = "REST"
	APITypeStream APIType = "STREAM"
)

// RateLimitConfig holds token bucket parameters.
type RateLimitConfig struct {
	BucketSize      int `bson:"bucket_size" json:"bucket_size"`
	TokenRefillRate int `bson:"token_refill_rate" json:"token_refill_rate"` // tokens per second
}

// APIEndpointConfig overrides the default rate limit for one route.
// Stored in the `api_endpoints_config` collection.
type APIEndpointConfig struct {
	Base         `bson:",inline"`
	Type         APIType          `bson:"type" json:"type"`
	Endpoint     string           `bson:"endpoint" json:"endpoint"` // gin route pattern, e.g. /v1/wallet/cash-in
	AuthRequired bool             `bson:"auth_required" json:"auth_required"`
	RateLimit    *RateLimitConfig `bson:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}
