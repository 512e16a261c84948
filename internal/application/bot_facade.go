package application

import (
	"context"
	"regexp"
	"strings"
)

var lookupRe = regexp.MustCompile(`^[A-Za-z]\d+$`)

// BotFacade composes the use cases into the inputs the transport layer sees:
// free text, photos and help.
type BotFacade struct {
	Listings ListingUseCaseIface
	AddFlow  AddFlowUseCaseIface
	Publish  PublishUseCaseIface
	Purchase PurchaseUseCaseIface

	adminID int64
	helpAdm func() string
}

// NewBotFacade wires the use cases. adminHelp renders the admin section of /help.
func NewBotFacade(
	listings ListingUseCaseIface,
	addFlow AddFlowUseCaseIface,
	publish PublishUseCaseIface,
	purchase PurchaseUseCaseIface,
	adminID int64,
	adminHelp func() string,
) *BotFacade {
	return &BotFacade{
		Listings: listings,
		AddFlow:  addFlow,
		Publish:  publish,
		Purchase: purchase,
		adminID:  adminID,
		helpAdm:  adminHelp,
	}
}

func (b *BotFacade) IsAdmin(userID int64) bool { return b.adminID != 0 && userID == b.adminID }

// HandleText routes a plain (non-command) message. An admin with an add flow
// in progress feeds the flow; anything shaped like a listing ID is a lookup.
// Other text is ignored and reported as not handled.
func (b *BotFacade) HandleText(ctx context.Context, chatID, userID int64, text string) (bool, error) {
	if b.IsAdmin(userID) {
		handled, err := b.AddFlow.HandleText(ctx, chatID, userID, text)
		if handled || err != nil {
			return handled, err
		}
	}
	t := strings.TrimSpace(text)
	if !lookupRe.MatchString(t) {
		return false, nil
	}
	return true, b.Purchase.Lookup(ctx, chatID, userID, t)
}

// HandlePhoto feeds admin photos into the add flow; buyers' photos are ignored.
func (b *BotFacade) HandlePhoto(ctx context.Context, chatID, userID int64, fileID string) (bool, error) {
	if !b.IsAdmin(userID) {
		return false, nil
	}
	return b.AddFlow.HandlePhoto(ctx, chatID, userID, fileID)
}

// HelpText is the buyer help, plus the admin section for the admin.
func (b *BotFacade) HelpText(userID int64) string {
	text := b.Purchase.Help()
	if b.IsAdmin(userID) && b.helpAdm != nil {
		text += b.helpAdm()
	}
	return text
}
