package model

import "time"

type DeliveryMode string

const (
	DeliveryModePaid DeliveryMode = "paid"
	DeliveryModeDemo DeliveryMode = "demo"
)

// PaymentEvent is a successful payment notification as received from Telegram.
type PaymentEvent struct {
	ChargeID         string // telegram_payment_charge_id, unique per payment
	ProviderChargeID string
	Payload          string // invoice payload, the listing ID
	Currency         string
	TotalAmount      int
	BuyerChatID      int64
}

// Delivery records that a listing payload was released to a buyer.
type Delivery struct {
	ID        string // ULID
	ChargeID  string
	ListingID string
	BuyerID   int64
	Mode      DeliveryMode
	CreatedAt time.Time
}
