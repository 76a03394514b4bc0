//go:build integration

package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"voyago/backend/internal/auth"
	"voyago/backend/internal/db"
	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

const (
	testAppBinary      = "./voyago_test_app"
	testAppPort        = "8089"
	testServiceApiPort = "8091"
	testAppURL         = "http://localhost:" + testAppPort
	testServiceApiURL  = "http://localhost:" + testServiceApiPort
	testJwtSecret      = "integration-test-secret"
	startupTimeout     = 15 * time.Second
	pingEndpoint       = testAppURL + "/v1/ping"
)

var (
	testHostID    = utils.NewSixID()
	testGuestID   = utils.NewSixID()
	testListingID = utils.NewSixID()
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

// run builds the binary, seeds a host with one listing and runs the
// application in "all" mode against the local MongoDB and Redis.
func run(m *testing.M) int {
	defer func() { _ = os.Remove(testAppBinary) }()

	_ = godotenv.Load()
	buildOutput, err := exec.Command("go", "build", "-o", testAppBinary, ".").CombinedOutput()
	if err != nil {
		log.Printf("Failed to build application: %v\nOutput:\n%s", err, string(buildOutput))
		return 1
	}

	if err := seedTestData(); err != nil {
		log.Printf("Failed to seed test data: %v", err)
		return 1
	}
	defer cleanupTestData()

	appCmd := exec.Command(testAppBinary, "-m", "all")
	appCmd.Env = append(os.Environ(),
		"API_PORT="+testAppPort,
		"SERVICE_API_PORT="+testServiceApiPort,
		"JWT_SECRET="+testJwtSecret,
		"APP_ENV=test",
		"AWS_REGION=us-east-1",
		"AWS_S3_BUCKET=voyago-test",
		"RATE_LIMIT_BUCKET_SIZE=100",
		"RATE_LIMIT_REFILL_RATE=100",
	)
	appCmd.Stderr = os.Stderr
	appCmd.Stdout = os.Stdout
	if err := appCmd.Start(); err != nil {
		log.Printf("Failed to start application: %v", err)
		return 1
	}
	defer func() {
		if err := appCmd.Process.Signal(syscall.SIGTERM); err != nil {
			_ = appCmd.Process.Kill()
			return
		}
		_, _ = appCmd.Process.Wait()
	}()

	if !waitForPing() {
		log.Printf("Application failed to start within %v", startupTimeout)
		return 1
	}

	return m.Run()
}

func waitForPing() bool {
	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(pingEndpoint)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK && string(body) == "pong" {
				return true
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

func mongoDatabase(ctx context.Context) (*mongo.Client, *mongo.Database, error) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	dbName := os.Getenv("MONGO_DB_NAME")
	if dbName == "" {
		dbName = "voyago"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	return client, client.Database(dbName), nil
}

func seedTestData() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, database, err := mongoDatabase(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	now := time.Now().UTC()
	host := models.User{
		Name:      "Integration Host",
		Email:     "host@example.com",
		Roles:     []models.Role{models.RoleGuest, models.RoleHost},
		CreatedAt: now,
		UpdatedAt: now,
	}
	host.ID = testHostID
	if _, err := database.Collection(db.UsersCollection).InsertOne(ctx, host); err != nil {
		return fmt.Errorf("insert host: %w", err)
	}

	listing := models.Listing{
		ID:        testListingID,
		HostID:    testHostID,
		Title:     "Integration Cabin",
		Category:  "stays",
		Price:     120,
		Location:  "Queenstown, Otago, New Zealand",
		Status:    models.ListingStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := database.Collection(db.ListingsCollection).InsertOne(ctx, listing); err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func cleanupTestData() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, database, err := mongoDatabase(ctx)
	if err != nil {
		log.Printf("Cleanup: %v", err)
		return
	}
	defer client.Disconnect(ctx)

	users := bson.M{"_id": bson.M{"$in": []utils.SixID{testHostID, testGuestID}}}
	_, _ = database.Collection(db.UsersCollection).DeleteMany(ctx, users)
	_, _ = database.Collection(db.ListingsCollection).DeleteOne(ctx, bson.M{"_id": testListingID})
	_, _ = database.Collection(db.BookingsCollection).DeleteMany(ctx, bson.M{"listing_id": testListingID})
	_, _ = database.Collection(db.ReviewsCollection).DeleteMany(ctx, bson.M{"listing_id": testListingID})
	_, _ = database.Collection(db.MessagesCollection).DeleteMany(ctx, bson.M{"sender_id": bson.M{"$in": []utils.SixID{testHostID, testGuestID}}})
}

func tokenFor(t *testing.T, id utils.SixID, name string) string {
	token, err := auth.GenerateJWT(auth.Identity{UserID: id, Name: name}, testJwtSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func apiRequest(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, testAppURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func TestIntegration_Ping(t *testing.T) {
	resp, err := http.Get(pingEndpoint)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
}

func TestIntegration_ListingSearch(t *testing.T) {
	status, body := apiRequest(t, http.MethodGet, "/v1/listings?category=stays&limit=200", "", nil)
	require.Equal(t, http.StatusOK, status)

	found := false
	for _, item := range body["data"].([]interface{}) {
		if item.(map[string]interface{})["id"] == testListingID.String() {
			found = true
		}
	}
	assert.True(t, found, "seeded listing should be searchable")
}

func TestIntegration_Unauthenticated(t *testing.T) {
	status, _ := apiRequest(t, http.MethodGet, "/v1/wallet", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestIntegration_BookingLifecycle(t *testing.T) {
	guestToken := tokenFor(t, testGuestID, "Integration Guest")
	hostToken := tokenFor(t, testHostID, "Integration Host")

	checkIn := time.Now().Add(-72 * time.Hour).UTC()
	status, booking := apiRequest(t, http.MethodPost, "/v1/bookings", guestToken, map[string]interface{}{
		"listing_id": testListingID.String(),
		"check_in":   checkIn,
		"check_out":  checkIn.Add(48 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, status, "create booking: %v", booking)
	bookingID := booking["id"].(string)
	assert.Equal(t, string(models.BookingStatusPending), booking["status"])

	// Guests cannot use host routes.
	status, _ = apiRequest(t, http.MethodPost, "/v1/host/bookings/"+bookingID+"/confirm", guestToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, booking = apiRequest(t, http.MethodPost, "/v1/host/bookings/"+bookingID+"/confirm", hostToken, nil)
	require.Equal(t, http.StatusOK, status, "confirm booking: %v", booking)
	assert.Equal(t, string(models.BookingStatusConfirmed), booking["status"])

	status, booking = apiRequest(t, http.MethodPost, "/v1/host/bookings/"+bookingID+"/complete", hostToken, nil)
	require.Equal(t, http.StatusOK, status, "complete booking: %v", booking)
	assert.Equal(t, string(models.BookingStatusCompleted), booking["status"])

	status, review := apiRequest(t, http.MethodPost, "/v1/reviews", guestToken, map[string]interface{}{
		"booking_id": bookingID,
		"rating":     5,
		"comment":    "Lovely cabin",
	})
	require.Equal(t, http.StatusCreated, status, "add review: %v", review)

	status, rating := apiRequest(t, http.MethodGet, "/v1/listings/"+testListingID.String()+"/rating", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 5, rating["average"])

	status, recs := apiRequest(t, http.MethodGet, "/v1/recommendations", guestToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, recs["data"])
}

func TestIntegration_ChatBetweenGuestAndHost(t *testing.T) {
	guestToken := tokenFor(t, testGuestID, "Integration Guest")
	hostToken := tokenFor(t, testHostID, "Integration Host")

	status, msg := apiRequest(t, http.MethodPost, "/v1/conversations/"+testHostID.String()+"/messages", guestToken,
		map[string]interface{}{"text": "Is early check-in possible?"})
	require.Equal(t, http.StatusCreated, status, "send message: %v", msg)

	status, page := apiRequest(t, http.MethodGet, "/v1/conversations/"+testGuestID.String()+"/messages", hostToken, nil)
	require.Equal(t, http.StatusOK, status)
	messages := page["data"].([]interface{})
	require.NotEmpty(t, messages)
	last := messages[len(messages)-1].(map[string]interface{})
	assert.Equal(t, "Is early check-in possible?", last["text"])

	status, read := apiRequest(t, http.MethodPost, "/v1/conversations/"+testGuestID.String()+"/read", hostToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, read["updated"].(float64), float64(1))
}

func TestIntegration_ServiceApiEnqueue(t *testing.T) {
	payload, _ := json.Marshal(map[string]interface{}{
		"method":    "enqueueTask",
		"arguments": []string{"wallet:withdrawal:pending"},
	})
	resp, err := http.Post(testServiceApiURL+"/api", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
