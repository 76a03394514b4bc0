package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names shared by services.
const (
	UsersCollection              = "users"
	ListingsCollection           = "listings"
	BookingsCollection           = "bookings"
	MessagesCollection           = "messages"
	FavoritesCollection          = "favorites"
	ReviewsCollection            = "reviews"
	WithdrawalRequestsCollection = "withdrawal_requests"
	AdminPaymentsCollection      = "admin_payments"
	ConfigCollection             = "configuration"
	APIConfigCollection          = "api_endpoints_config"
)

var indexes = map[string][]mongo.IndexModel{
	ListingsCollection: {
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "host_id", Value: 1}}},
	},
	BookingsCollection: {
		{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "host_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "check_out", Value: 1}}},
	},
	MessagesCollection: {
		{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "read", Value: 1}}},
	},
	FavoritesCollection: {
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "listing_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	ReviewsCollection: {
		{Keys: bson.D{{Key: "listing_id", Value: 1}}},
	},
	WithdrawalRequestsCollection: {
		{Keys: bson.D{{Key: "host_id", Value: 1}, {Key: "requested_at", Value: -1}}},
	},
	AdminPaymentsCollection: {
		{Keys: bson.D{{Key: "host_id", Value: 1}, {Key: "created_at", Value: 1}}},
	},
	UsersCollection: {
		{Keys: bson.D{{Key: "transactions.payment_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	},
}

// EnsureIndexes creates the indexes the query paths rely on. Queries that
// still fail for lack of an index fall back to unordered reads.
func EnsureIndexes(ctx context.Context, database *mongo.Database, log *zap.Logger) error {
	for name, models := range indexes {
		created, err := database.Collection(name).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
		log.Debug("Ensured indexes", zap.String("collection", name), zap.Strings("indexes", created))
	}
	return nil
}
