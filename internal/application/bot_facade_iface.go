package application

import (
	"context"

	"telegram-listing-bot/internal/domain/flow"
	"telegram-listing-bot/internal/domain/model"
)

// Small interfaces decoupling the facade from the concrete use case structs,
// so tests can pass light-weight mocks.

type ListingUseCaseIface interface {
	List(ctx context.Context, actorID int64) ([]model.ListingSummary, error)
	All(ctx context.Context) ([]model.ListingSummary, error)
	Get(ctx context.Context, rawID string) (*model.Listing, error)
	SendList(ctx context.Context, chatID, actorID int64) error
	AskDelete(ctx context.Context, chatID, actorID int64, rawID string) error
	Delete(ctx context.Context, chatID, actorID int64, rawID string) (bool, error)
}

type AddFlowUseCaseIface interface {
	Start(ctx context.Context, chatID, actorID int64, rawID string) error
	HandleText(ctx context.Context, chatID, actorID int64, text string) (bool, error)
	HandlePhoto(ctx context.Context, chatID, actorID int64, fileID string) (bool, error)
	HandleAction(ctx context.Context, chatID, actorID int64, action flow.Action) error
	Finish(ctx context.Context, chatID, actorID int64) error
	Restart(ctx context.Context, chatID, actorID int64) error
	Debug(ctx context.Context, chatID, actorID int64) error
}

type PublishUseCaseIface interface {
	Publish(ctx context.Context, actorID int64, id string) error
	PublishAndReport(ctx context.Context, chatID, actorID int64, rawID string) error
}

type PurchaseUseCaseIface interface {
	Welcome(ctx context.Context, chatID int64, startArg string) error
	Help() string
	AskID(ctx context.Context, chatID int64) error
	Lookup(ctx context.Context, chatID, buyerID int64, rawID string) error
	Confirm(ctx context.Context, chatID int64, id string) error
	Pay(ctx context.Context, chatID, buyerID int64, id string) error
	PreCheckout(ctx context.Context, queryID, payload string) error
	CompletePayment(ctx context.Context, ev model.PaymentEvent) error
	Redeliver(ctx context.Context, chatID, buyerID int64, deliveryID string) error
}
