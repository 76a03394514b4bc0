package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"voyago/backend/internal/db"
	"voyago/backend/internal/ledger"
	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

// OnboardingInput is what a user submits when finishing host onboarding.
type OnboardingInput struct {
	PropertyType   string
	HostingGoal    string
	PhotoKey       string
	AgreedPolicies bool
}

// ErrPoliciesNotAccepted is returned when onboarding is submitted without accepting the hosting policies.
var ErrPoliciesNotAccepted = errors.New("hosting policies must be accepted")

// IUserService defines the interface for user-related operations.
type IUserService interface {
	EnsureUser(ctx context.Context, userID utils.SixID, name, email string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	FindProfiles(ctx context.Context, ids []utils.SixID) (map[utils.SixID]models.UserProfile, error)
	CompleteHostOnboarding(ctx context.Context, userID utils.SixID, in OnboardingInput) (*models.User, error)
	SetPaypalEmail(ctx context.Context, userID utils.SixID, email string) error
}

type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(database *mongo.Database) IUserService {
	return &userService{db: database}
}

// EnsureUser creates the user document on first sight of an identity and
// returns the stored document. New users start as guests with an empty wallet.
func (s *userService) EnsureUser(ctx context.Context, userID utils.SixID, name, email string) (*models.User, error) {
	now := time.Now().UTC()
	filter := bson.M{"_id": userID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"name":           name,
			"email":          strings.ToLower(strings.TrimSpace(email)),
			"roles":          []models.Role{models.RoleGuest},
			"is_admin":       false,
			"wallet_balance": 0.0,
			"transactions":   []models.Transaction{},
			"created_at":     now,
			"updated_at":     now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user %s: %w", userID.String(), err)
	}
	return &user, nil
}

// FindByID returns mongo.ErrNoDocuments when the user does not exist.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID.String(), err)
	}
	return &user, nil
}

// FindProfiles loads the public profile of each existing user in ids.
func (s *userService) FindProfiles(ctx context.Context, ids []utils.SixID) (map[utils.SixID]models.UserProfile, error) {
	profiles := make(map[utils.SixID]models.UserProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}
	opts := options.Find().SetProjection(bson.M{"name": 1, "email": 1, "photo_url": 1})
	cursor, err := s.db.Collection(db.UsersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return profiles, fmt.Errorf("failed to query user profiles: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var p models.UserProfile
		if err := cursor.Decode(&p); err != nil {
			return profiles, fmt.Errorf("failed to decode user profile: %w", err)
		}
		profiles[p.ID] = p
	}
	return profiles, cursor.Err()
}

// CompleteHostOnboarding records onboarding metadata and grants the host role.
func (s *userService) CompleteHostOnboarding(ctx context.Context, userID utils.SixID, in OnboardingInput) (*models.User, error) {
	if !in.AgreedPolicies {
		return nil, ErrPoliciesNotAccepted
	}
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"host_onboarding": models.HostOnboarding{
				Completed:      true,
				CompletedAt:    &now,
				PropertyType:   in.PropertyType,
				HostingGoal:    in.HostingGoal,
				PhotoKey:       in.PhotoKey,
				AgreedPolicies: true,
			},
			"updated_at": now,
		},
		"$addToSet": bson.M{"roles": models.RoleHost},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to complete onboarding for user %s: %w", userID.String(), err)
	}
	return &user, nil
}

// SetPaypalEmail stores the payout address used for withdrawals.
func (s *userService) SetPaypalEmail(ctx context.Context, userID utils.SixID, email string) error {
	email = strings.TrimSpace(email)
	if err := ledger.ValidateEmail(email); err != nil {
		return err
	}
	result, err := s.db.Collection(db.UsersCollection).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"paypal_email": email, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set payout email for user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
