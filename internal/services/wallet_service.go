package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"voyago/backend/internal/config"
	"voyago/backend/internal/db"
	"voyago/backend/internal/ledger"
	"voyago/backend/internal/metrics"
	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

var (
	ErrInsufficientBalance  = ledger.ErrInsufficientBalance
	ErrInvalidAmount        = ledger.ErrInvalidAmount
	ErrInvalidEmail         = ledger.ErrInvalidEmail
	ErrPaymentNotCaptured   = ledger.ErrPaymentNotCaptured
	ErrDuplicateCapture     = errors.New("payment capture already applied")
	ErrWithdrawalNotPending = errors.New("withdrawal request is not pending")
)

// Wallet is a user's balance with the merged ledger view.
type Wallet struct {
	UserID       utils.SixID          `json:"user_id"`
	Balance      float64              `json:"balance"`
	CurrencyCode string               `json:"currency_code"`
	PaypalEmail  string               `json:"paypal_email,omitempty"`
	Transactions []models.Transaction `json:"transactions"`
}

// WithdrawalDecision is an admin's resolution of a pending withdrawal.
type WithdrawalDecision struct {
	Status        models.WithdrawalStatus
	AdminNotes    string
	Fee           float64
	PayoutBatchID string
}

// IWalletService defines wallet ledger operations. Every balance change is a
// single atomic update that also prepends its transaction record.
type IWalletService interface {
	GetWallet(ctx context.Context, userID utils.SixID) (*Wallet, error)
	CashIn(ctx context.Context, userID utils.SixID, capture models.PaymentCapture) (*models.User, error)
	RequestWithdrawal(ctx context.Context, hostID utils.SixID, amount float64, paypalEmail string) (*models.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, hostID utils.SixID) ([]models.WithdrawalRequest, error)
	ListPendingWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRequest, error)
	ProcessWithdrawal(ctx context.Context, requestID utils.SixID, decision WithdrawalDecision) (*models.WithdrawalRequest, error)
	RecordBookingEarning(ctx context.Context, booking *models.Booking) error
}

type walletService struct {
	db      *mongo.Database
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewWalletService creates a new WalletService.
func NewWalletService(database *mongo.Database, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) IWalletService {
	return &walletService{db: database, cfg: cfg, log: log, metrics: m}
}

func newTransaction(t models.TransactionType, amount float64, status models.TransactionStatus, description string) models.Transaction {
	return models.Transaction{
		ID:          utils.NewSixID(),
		Type:        t,
		Amount:      amount,
		Status:      status,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// appendLedger applies delta to the balance and prepends tx in one update.
// Debits only match while the balance covers them. extra narrows the
// filter further. A miss returns mongo.ErrNoDocuments; the caller decides
// what the miss means.
func (s *walletService) appendLedger(ctx context.Context, userID utils.SixID, delta float64, tx models.Transaction, extra bson.M) (*models.User, error) {
	filter := bson.M{"_id": userID}
	if delta < 0 {
		filter["wallet_balance"] = bson.M{"$gte": -delta}
	}
	for k, v := range extra {
		filter[k] = v
	}
	update := bson.M{
		"$inc": bson.M{"wallet_balance": delta},
		"$push": bson.M{"transactions": bson.M{
			"$each":     bson.A{tx},
			"$position": 0,
		}},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	if err := s.db.Collection(db.UsersCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to append ledger entry for user %s: %w", userID.String(), err)
	}
	return &user, nil
}

func (s *walletService) findUser(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user %s: %w", userID.String(), err)
	}
	return &user, nil
}

func (s *walletService) GetWallet(ctx context.Context, userID utils.SixID) (*Wallet, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	requests, err := s.ListWithdrawals(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Wallet{
		UserID:       user.ID,
		Balance:      user.WalletBalance,
		CurrencyCode: s.cfg.CurrencyCode,
		PaypalEmail:  user.PaypalEmail,
		Transactions: ledger.Merge(user.Transactions, requests),
	}, nil
}

// CashIn credits a captured payment. The same capture ID is only ever
// applied once; the check is part of the balance update itself.
func (s *walletService) CashIn(ctx context.Context, userID utils.SixID, capture models.PaymentCapture) (user *models.User, err error) {
	defer func() { s.metrics.WalletOperations.WithLabelValues("cash_in", metrics.Outcome(err)).Inc() }()

	amount, err := ledger.CaptureAmount(capture)
	if err != nil {
		return nil, err
	}
	if amount < s.cfg.MinCashInAmount || (s.cfg.MaxCashInAmount > 0 && amount > s.cfg.MaxCashInAmount) {
		return nil, fmt.Errorf("%w: cash-in must be between %.2f and %.2f", ErrInvalidAmount, s.cfg.MinCashInAmount, s.cfg.MaxCashInAmount)
	}
	if capture.ID == "" {
		return nil, fmt.Errorf("%w: missing capture id", ErrPaymentNotCaptured)
	}

	tx := newTransaction(models.TransactionCashIn, amount, models.TransactionCompleted, "Wallet top-up via PayPal")
	tx.PaymentID = capture.ID

	user, err = s.appendLedger(ctx, userID, amount, tx, bson.M{"transactions.payment_id": bson.M{"$ne": capture.ID}})
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, findErr := s.findUser(ctx, userID); findErr != nil {
			return nil, findErr
		}
		return nil, ErrDuplicateCapture
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("Wallet cash-in applied",
		zap.String("user_id", userID.String()),
		zap.Float64("amount", amount),
		zap.String("capture_id", capture.ID),
	)
	return user, nil
}

// RequestWithdrawal creates a pending payout and deducts it from the
// balance right away. If the guarded deduction loses a race, the request is
// marked rejected and nothing is deducted. Admin payments are linked after
// the deduction succeeds; linking is best effort.
func (s *walletService) RequestWithdrawal(ctx context.Context, hostID utils.SixID, amount float64, paypalEmail string) (req *models.WithdrawalRequest, err error) {
	defer func() { s.metrics.WalletOperations.WithLabelValues("withdrawal_request", metrics.Outcome(err)).Inc() }()

	amount = ledger.RoundCents(amount)
	user, err := s.findUser(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if err := ledger.Withdrawal(amount, user.WalletBalance, paypalEmail); err != nil {
		return nil, err
	}
	if amount < s.cfg.MinWithdrawalAmount {
		return nil, fmt.Errorf("%w: minimum withdrawal is %.2f", ErrInvalidAmount, s.cfg.MinWithdrawalAmount)
	}

	coll := s.db.Collection(db.WithdrawalRequestsCollection)
	req, err = db.InsertOne(ctx, coll, &models.WithdrawalRequest{
		HostID:      hostID,
		Amount:      amount,
		PaypalEmail: paypalEmail,
		Status:      models.WithdrawalPending,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal request: %w", err)
	}

	tx := newTransaction(models.TransactionWithdrawal, amount, models.TransactionPending, fmt.Sprintf("Withdrawal to %s", paypalEmail))
	tx.WithdrawalRequestID = req.ID
	if _, err := s.appendLedger(ctx, hostID, -amount, tx, nil); err != nil {
		reason := "Balance could not be deducted"
		if errors.Is(err, mongo.ErrNoDocuments) {
			reason = "Insufficient balance at time of deduction"
			err = ErrInsufficientBalance
		}
		now := time.Now().UTC()
		if _, markErr := coll.UpdateOne(ctx, bson.M{"_id": req.ID}, bson.M{"$set": bson.M{
			"status":       models.WithdrawalRejected,
			"admin_notes":  reason,
			"processed_at": now,
		}}); markErr != nil {
			s.log.Error("Failed to reject withdrawal after failed deduction",
				zap.String("request_id", req.ID.String()), zap.Error(markErr))
		}
		return nil, err
	}

	req.LinkedAdminPayments = s.linkAdminPayments(ctx, req)
	return req, nil
}

// linkAdminPayments claims the host's oldest unclaimed admin payments for
// the request. Each claim only applies if the payment is unchanged since it
// was read; a lost race just leaves that payment unlinked.
func (s *walletService) linkAdminPayments(ctx context.Context, req *models.WithdrawalRequest) []models.LinkedPayment {
	payColl := s.db.Collection(db.AdminPaymentsCollection)
	cursor, err := payColl.Find(ctx, bson.M{
		"host_id":               req.HostID,
		"withdrawal_request_id": bson.M{"$exists": false},
	}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		s.log.Warn("Could not load admin payments for linking", zap.Error(err))
		return nil
	}
	var payments []models.AdminPayment
	if err := cursor.All(ctx, &payments); err != nil {
		s.log.Warn("Could not decode admin payments for linking", zap.Error(err))
		return nil
	}

	byID := make(map[utils.SixID]models.AdminPayment, len(payments))
	for _, p := range payments {
		byID[p.ID] = p
	}

	var linked []models.LinkedPayment
	for _, l := range ledger.PlanLinks(payments, req.Amount) {
		set := bson.M{}
		if l.Full {
			set["withdrawal_request_id"] = req.ID
		}
		update := bson.M{"$inc": bson.M{"linked_amount": l.Amount}}
		if len(set) > 0 {
			update["$set"] = set
		}
		result, err := payColl.UpdateOne(ctx, bson.M{
			"_id":           l.PaymentID,
			"linked_amount": byID[l.PaymentID].LinkedAmount,
		}, update)
		if err != nil || result.ModifiedCount == 0 {
			s.log.Warn("Admin payment not linked", zap.String("payment_id", l.PaymentID.String()), zap.Error(err))
			continue
		}
		linked = append(linked, models.LinkedPayment{PaymentID: l.PaymentID, Amount: l.Amount})
	}

	if len(linked) > 0 {
		_, err := s.db.Collection(db.WithdrawalRequestsCollection).UpdateOne(ctx,
			bson.M{"_id": req.ID},
			bson.M{"$set": bson.M{"linked_admin_payments": linked}},
		)
		if err != nil {
			s.log.Warn("Could not record linked admin payments", zap.String("request_id", req.ID.String()), zap.Error(err))
		}
	}
	return linked
}

// ListWithdrawals returns the host's requests, newest first.
func (s *walletService) ListWithdrawals(ctx context.Context, hostID utils.SixID) ([]models.WithdrawalRequest, error) {
	return s.findWithdrawals(ctx, bson.M{"host_id": hostID}, 0)
}

// ListPendingWithdrawals returns requests awaiting an admin, newest first.
func (s *walletService) ListPendingWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRequest, error) {
	return s.findWithdrawals(ctx, bson.M{"status": models.WithdrawalPending}, limit)
}

func (s *walletService) findWithdrawals(ctx context.Context, filter bson.M, limit int) ([]models.WithdrawalRequest, error) {
	coll := s.db.Collection(db.WithdrawalRequestsCollection)
	opts := options.Find().SetSort(bson.D{{Key: "requested_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	requests := []models.WithdrawalRequest{}
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		s.log.Warn("Ordered withdrawal query failed, falling back to unordered", zap.Error(err))
		cursor, err = coll.Find(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to query withdrawal requests: %w", err)
		}
		defer cursor.Close(ctx)
		if err = cursor.All(ctx, &requests); err != nil {
			return nil, fmt.Errorf("failed to decode withdrawal requests: %w", err)
		}
		sortWithdrawalsNewestFirst(requests)
		if limit > 0 && len(requests) > limit {
			requests = requests[:limit]
		}
		return requests, nil
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode withdrawal requests: %w", err)
	}
	return requests, nil
}

// ProcessWithdrawal resolves a pending request. Completion settles the
// pending transaction; rejection refunds the amount and releases the
// linked admin payments.
func (s *walletService) ProcessWithdrawal(ctx context.Context, requestID utils.SixID, decision WithdrawalDecision) (req *models.WithdrawalRequest, err error) {
	defer func() { s.metrics.WalletOperations.WithLabelValues("withdrawal_"+string(decision.Status), metrics.Outcome(err)).Inc() }()

	now := time.Now().UTC()
	set := bson.M{
		"status":       decision.Status,
		"admin_notes":  decision.AdminNotes,
		"processed_at": now,
	}
	switch decision.Status {
	case models.WithdrawalCompleted:
		if decision.Fee < 0 {
			return nil, fmt.Errorf("%w: fee cannot be negative", ErrInvalidAmount)
		}
		set["fee"] = ledger.RoundCents(decision.Fee)
		set["payout_batch_id"] = decision.PayoutBatchID
	case models.WithdrawalRejected:
	default:
		return nil, fmt.Errorf("unknown withdrawal decision %q", decision.Status)
	}

	coll := s.db.Collection(db.WithdrawalRequestsCollection)
	var updated models.WithdrawalRequest
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": requestID, "status": models.WithdrawalPending},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if count, _ := coll.CountDocuments(ctx, bson.M{"_id": requestID}); count == 0 {
				return nil, mongo.ErrNoDocuments
			}
			return nil, ErrWithdrawalNotPending
		}
		return nil, fmt.Errorf("failed to process withdrawal %s: %w", requestID.String(), err)
	}

	txStatus := ledger.StatusFor(updated.Status)
	_, err = s.db.Collection(db.UsersCollection).UpdateOne(ctx,
		bson.M{"_id": updated.HostID, "transactions.withdrawal_request_id": updated.ID},
		bson.M{"$set": bson.M{"transactions.$.status": txStatus}},
	)
	if err != nil {
		s.log.Warn("Could not update withdrawal transaction status",
			zap.String("request_id", updated.ID.String()), zap.Error(err))
	}

	if updated.Status == models.WithdrawalCompleted {
		payout := ledger.RoundCents(updated.Amount - updated.Fee)
		if _, err := coll.UpdateOne(ctx, bson.M{"_id": updated.ID}, bson.M{"$set": bson.M{"payout_amount": payout}}); err != nil {
			return nil, fmt.Errorf("failed to record payout amount: %w", err)
		}
		updated.PayoutAmount = payout
		return &updated, nil
	}

	refund := newTransaction(models.TransactionRefund, updated.Amount, models.TransactionCompleted, "Refund of rejected withdrawal")
	refund.WithdrawalRequestID = updated.ID
	if _, err := s.appendLedger(ctx, updated.HostID, updated.Amount, refund, nil); err != nil {
		s.reopenWithdrawal(ctx, &updated)
		return nil, fmt.Errorf("refund of withdrawal %s failed, request left pending: %w", updated.ID.String(), err)
	}
	s.releaseAdminPayments(ctx, &updated)
	return &updated, nil
}

// reopenWithdrawal puts a request whose rejection could not be refunded
// back to pending so an admin can process it again.
func (s *walletService) reopenWithdrawal(ctx context.Context, req *models.WithdrawalRequest) {
	_, err := s.db.Collection(db.WithdrawalRequestsCollection).UpdateOne(ctx,
		bson.M{"_id": req.ID, "status": models.WithdrawalRejected},
		bson.M{
			"$set":   bson.M{"status": models.WithdrawalPending},
			"$unset": bson.M{"processed_at": "", "admin_notes": ""},
		},
	)
	if err != nil {
		s.log.Error("Rejected withdrawal could not be reopened after failed refund",
			zap.String("request_id", req.ID.String()), zap.Float64("amount", req.Amount), zap.Error(err))
		return
	}
	_, err = s.db.Collection(db.UsersCollection).UpdateOne(ctx,
		bson.M{"_id": req.HostID, "transactions.withdrawal_request_id": req.ID},
		bson.M{"$set": bson.M{"transactions.$.status": models.TransactionPending}},
	)
	if err != nil {
		s.log.Warn("Could not reset withdrawal transaction status",
			zap.String("request_id", req.ID.String()), zap.Error(err))
	}
}

func (s *walletService) releaseAdminPayments(ctx context.Context, req *models.WithdrawalRequest) {
	payColl := s.db.Collection(db.AdminPaymentsCollection)
	for _, l := range req.LinkedAdminPayments {
		_, err := payColl.UpdateOne(ctx,
			bson.M{"_id": l.PaymentID},
			bson.M{
				"$inc":   bson.M{"linked_amount": -l.Amount},
				"$unset": bson.M{"withdrawal_request_id": ""},
			},
		)
		if err != nil {
			s.log.Warn("Could not release admin payment", zap.String("payment_id", l.PaymentID.String()), zap.Error(err))
		}
	}
}

// RecordBookingEarning records what the platform owes the host for a
// completed booking and credits the host's wallet. If the credit fails the
// admin payment is removed again so no unpaid earning is left behind.
func (s *walletService) RecordBookingEarning(ctx context.Context, booking *models.Booking) (err error) {
	defer func() { s.metrics.WalletOperations.WithLabelValues("booking_earning", metrics.Outcome(err)).Inc() }()

	amount := ledger.RoundCents(booking.TotalPrice)
	if amount <= 0 {
		return ErrInvalidAmount
	}
	payColl := s.db.Collection(db.AdminPaymentsCollection)
	payment, err := db.InsertOne(ctx, payColl, &models.AdminPayment{
		HostID:    booking.HostID,
		BookingID: booking.ID,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to record admin payment: %w", err)
	}

	description := "Earning from booking"
	if booking.ListingTitle != "" {
		description = fmt.Sprintf("Earning from %s", booking.ListingTitle)
	}
	tx := newTransaction(models.TransactionBookingEarning, amount, models.TransactionCompleted, description)
	if _, err = s.appendLedger(ctx, booking.HostID, amount, tx, nil); err != nil {
		if _, delErr := payColl.DeleteOne(ctx, bson.M{"_id": payment.ID}); delErr != nil {
			s.log.Error("Admin payment left without wallet credit",
				zap.String("payment_id", payment.ID.String()), zap.String("booking_id", booking.ID.String()), zap.Error(delErr))
		}
		return fmt.Errorf("failed to credit host %s for booking %s: %w", booking.HostID.String(), booking.ID.String(), err)
	}
	return nil
}
