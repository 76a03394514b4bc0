package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"voyago/backend/internal/config"
	"voyago/backend/internal/db"
	"voyago/backend/internal/models"
)

// IConfigService defines the interface for accessing runtime configuration.
type IConfigService interface {
	GetAllPublic(ctx context.Context) (map[string]interface{}, error)
	Get(ctx context.Context, key string) (interface{}, error)
	GetInt(ctx context.Context, key string, defaultValue int) int
	GetString(ctx context.Context, key string, defaultValue string) string
	GetBool(ctx context.Context, key string, defaultValue bool) bool
	GetFloat64(ctx context.Context, key string, defaultValue float64) float64
	GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration
	Load(ctx context.Context) error
	SubscribeToChanges(ctx context.Context) error
	SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error
	GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error)
}

const configUpdateChannel = "config_updates"

type configService struct {
	db       *mongo.Database
	cfg      *config.Config
	rdb      *redis.Client
	log      *zap.Logger
	cache    map[string]interface{}
	apiCache map[string]*models.APIEndpointConfig
	mutex    sync.RWMutex
}

// NewConfigService creates a ConfigService, loads the stored entries and
// listens for reload notifications until ctx is done.
func NewConfigService(ctx context.Context, database *mongo.Database, initialCfg *config.Config, rdb *redis.Client, log *zap.Logger) IConfigService {
	s := &configService{
		db:       database,
		cfg:      initialCfg,
		rdb:      rdb,
		log:      log,
		cache:    make(map[string]interface{}),
		apiCache: make(map[string]*models.APIEndpointConfig),
	}
	if err := s.Load(ctx); err != nil {
		log.Warn("Failed to load initial config from DB, using environment defaults", zap.Error(err))
	}
	go func() {
		if err := s.SubscribeToChanges(ctx); err != nil {
			log.Error("Config pub/sub listener stopped", zap.Error(err))
		}
	}()
	return s
}

// ConfigEntry represents a document in the configuration collection.
type ConfigEntry struct {
	Key    string      `bson:"key"`
	Value  interface{} `bson:"value"`
	Public bool        `bson:"public"`
}

func apiCacheKey(apiType models.APIType, endpoint string, authenticated bool) string {
	return fmt.Sprintf("%s#%s#%t", apiType, endpoint, authenticated)
}

// Load replaces the in-memory caches with the stored entries.
func (s *configService) Load(ctx context.Context) error {
	cursor, err := s.db.Collection(db.ConfigCollection).Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query config collection: %w", err)
	}
	defer cursor.Close(ctx)

	newCache := make(map[string]interface{})
	for cursor.Next(ctx) {
		var entry ConfigEntry
		if err := cursor.Decode(&entry); err != nil {
			s.log.Warn("Failed to decode config entry", zap.Error(err))
			continue
		}
		newCache[entry.Key] = entry.Value
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("error iterating config cursor: %w", err)
	}

	newAPICache := make(map[string]*models.APIEndpointConfig)
	apiCursor, err := s.db.Collection(db.APIConfigCollection).Find(ctx, bson.M{})
	if err != nil {
		s.log.Warn("Error querying API endpoint configs", zap.Error(err))
	} else {
		defer apiCursor.Close(ctx)
		for apiCursor.Next(ctx) {
			var entry models.APIEndpointConfig
			if err := apiCursor.Decode(&entry); err != nil {
				s.log.Warn("Failed to decode API config entry", zap.Error(err))
				continue
			}
			newAPICache[apiCacheKey(entry.Type, entry.Endpoint, entry.AuthRequired)] = &entry
		}
	}

	s.mutex.Lock()
	s.cache = newCache
	s.apiCache = newAPICache
	s.mutex.Unlock()

	s.log.Info("Loaded configuration", zap.Int("entries", len(newCache)), zap.Int("api_endpoints", len(newAPICache)))
	return nil
}

// GetAllPublic returns the public entries, with APP_NAME defaulted from the environment.
func (s *configService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	publicConfig := map[string]interface{}{}
	cursor, err := s.db.Collection(db.ConfigCollection).Find(ctx, bson.M{"public": true})
	if err != nil {
		return nil, fmt.Errorf("failed to query public config from DB: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var entry ConfigEntry
		if err := cursor.Decode(&entry); err != nil {
			s.log.Warn("Failed to decode public config entry", zap.Error(err))
			continue
		}
		publicConfig[entry.Key] = entry.Value
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating public config cursor: %w", err)
	}

	if _, exists := publicConfig["APP_NAME"]; !exists {
		publicConfig["APP_NAME"] = s.cfg.AppName
	}
	if _, exists := publicConfig["CURRENCY_CODE"]; !exists {
		publicConfig["CURRENCY_CODE"] = s.cfg.CurrencyCode
	}
	return publicConfig, nil
}

// Get reads from the cache, falling back to a few environment values.
func (s *configService) Get(ctx context.Context, key string) (interface{}, error) {
	s.mutex.RLock()
	val, exists := s.cache[key]
	s.mutex.RUnlock()
	if exists {
		return val, nil
	}

	switch key {
	case "APP_NAME":
		return s.cfg.AppName, nil
	case "CURRENCY_CODE":
		return s.cfg.CurrencyCode, nil
	default:
		return nil, fmt.Errorf("config key '%s' not found", key)
	}
}

func (s *configService) GetString(ctx context.Context, key string, defaultValue string) string {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if strVal, ok := val.(string); ok {
		return strVal
	}
	s.log.Warn("Config value is not a string, using default", zap.String("key", key))
	return defaultValue
}

func (s *configService) GetInt(ctx context.Context, key string, defaultValue int) int {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	// MongoDB may hand numbers back as any of these.
	switch v := val.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		s.log.Warn("Config value is not an integer, using default", zap.String("key", key), zap.String("type", fmt.Sprintf("%T", val)))
		return defaultValue
	}
}

func (s *configService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if boolVal, ok := val.(bool); ok {
		return boolVal
	}
	s.log.Warn("Config value is not a boolean, using default", zap.String("key", key))
	return defaultValue
}

func (s *configService) GetFloat64(ctx context.Context, key string, defaultValue float64) float64 {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	default:
		s.log.Warn("Config value is not numeric, using default", zap.String("key", key))
		return defaultValue
	}
}

// GetDuration reads a value stored as seconds.
func (s *configService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	switch v := val.(type) {
	case int:
		return time.Duration(v) * time.Second
	case int32:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		s.log.Warn("Config value is not a duration, using default", zap.String("key", key))
		return defaultValue
	}
}

// SubscribeToChanges reloads the caches on every notification until ctx is done.
func (s *configService) SubscribeToChanges(ctx context.Context) error {
	if s.rdb == nil {
		s.log.Info("Redis not configured, config changes will not be picked up live")
		return nil
	}

	pubsub := s.rdb.Subscribe(ctx, configUpdateChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to receive confirmation from Redis Pub/Sub subscription: %w", err)
	}

	ch := pubsub.Channel()
	s.log.Info("Subscribed to config updates", zap.String("channel", configUpdateChannel))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.log.Info("Config update received", zap.String("key", msg.Payload))
			if err := s.Load(ctx); err != nil {
				s.log.Error("Failed to reload config after notification", zap.Error(err))
			}
		}
	}
}

// SetConfigValue upserts an entry and notifies every instance to reload.
func (s *configService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	_, err := s.db.Collection(db.ConfigCollection).UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"key": key, "value": value, "public": isPublic}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert config key '%s' in DB: %w", key, err)
	}

	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, configUpdateChannel, key).Err(); err != nil {
			s.log.Warn("Failed to publish config update", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// GetAPIEndpointConfig returns the endpoint's limits, trying the guest
// entry when no authenticated one exists. Nil means use defaults.
func (s *configService) GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if c, ok := s.apiCache[apiCacheKey(apiType, endpoint, isAuthenticated)]; ok {
		return c, nil
	}
	if isAuthenticated {
		if c, ok := s.apiCache[apiCacheKey(apiType, endpoint, false)]; ok {
			return c, nil
		}
	}
	return nil, nil
}
