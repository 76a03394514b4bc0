package models

import (
	"time"

	"voyago/backend/internal/utils"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionCashIn         TransactionType = "cash_in"
	TransactionWithdrawal     TransactionType = "withdrawal"
	TransactionBookingPayment TransactionType = "booking_payment"
	TransactionBookingEarning TransactionType = "booking_earning"
	TransactionRefund         TransactionType = "refund"
)

// TransactionStatus is the settlement state of a ledger entry.
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionPending   TransactionStatus = "pending"
	TransactionRejected  TransactionStatus = "rejected"
)

// Transaction is one entry of a user's embedded ledger.
type Transaction struct {
	ID                  utils.SixID       `bson:"id" json:"id"`
	Type                TransactionType   `bson:"type" json:"type"`
	Amount              float64           `bson:"amount" json:"amount"`
	Status              TransactionStatus `bson:"status" json:"status"`
	Description         string            `bson:"description,omitempty" json:"description,omitempty"`
	WithdrawalRequestID utils.SixID       `bson:"withdrawal_request_id,omitempty" json:"withdrawal_request_id,omitempty"`
	PaymentID           string            `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	CreatedAt           time.Time         `bson:"created_at" json:"created_at"`
}

// WithdrawalStatus is the state of a payout request.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
)

// WithdrawalRequest is a host's request to be paid out. Status transitions
// after creation are owned by admins.
type WithdrawalRequest struct {
	Base                `bson:",inline"`
	HostID              utils.SixID      `bson:"host_id" json:"host_id"`
	Amount              float64          `bson:"amount" json:"amount"`
	PaypalEmail         string           `bson:"paypal_email" json:"paypal_email"`
	Status              WithdrawalStatus `bson:"status" json:"status"`
	AdminNotes          string           `bson:"admin_notes,omitempty" json:"admin_notes,omitempty"`
	PayoutAmount        float64          `bson:"payout_amount,omitempty" json:"payout_amount,omitempty"`
	Fee                 float64          `bson:"fee,omitempty" json:"fee,omitempty"`
	PayoutBatchID       string           `bson:"payout_batch_id,omitempty" json:"payout_batch_id,omitempty"`
	LinkedAdminPayments []LinkedPayment  `bson:"linked_admin_payments,omitempty" json:"linked_admin_payments,omitempty"`
	RequestedAt         time.Time        `bson:"requested_at" json:"requested_at"`
	ProcessedAt         *time.Time       `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// LinkedPayment is the share of one admin payment claimed by a withdrawal.
type LinkedPayment struct {
	PaymentID utils.SixID `bson:"payment_id" json:"payment_id"`
	Amount    float64     `bson:"amount" json:"amount"`
}

// AdminPayment records money the platform owes a host for a booking.
// LinkedAmount grows as withdrawal requests claim it.
type AdminPayment struct {
	Base                `bson:",inline"`
	HostID              utils.SixID `bson:"host_id" json:"host_id"`
	BookingID           utils.SixID `bson:"booking_id,omitempty" json:"booking_id,omitempty"`
	Amount              float64     `bson:"amount" json:"amount"`
	LinkedAmount        float64     `bson:"linked_amount" json:"linked_amount"`
	WithdrawalRequestID utils.SixID `bson:"withdrawal_request_id,omitempty" json:"withdrawal_request_id,omitempty"`
	CreatedAt           time.Time   `bson:"created_at" json:"created_at"`
}

// Remaining is the part of the payment not yet claimed by a withdrawal.
func (p *AdminPayment) Remaining() float64 {
	return p.Amount - p.LinkedAmount
}

// PaymentCapture is the result a checkout widget returns after capturing an order.
type PaymentCapture struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// PurchaseUnit is one unit of a captured order.
type PurchaseUnit struct {
	Amount CaptureAmount `json:"amount"`
}

// CaptureAmount carries a decimal amount as a string, as payment gateways send it.
type CaptureAmount struct {
	CurrencyCode string `json:"currency_code,omitempty"`
	Value        string `json:"value"`
}
