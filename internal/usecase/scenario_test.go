//go:build !integration

package usecase

import (
	"context"
	"testing"

	"telegram-listing-bot/internal/domain/flow"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/infra/memory"
)

// TestAddPublishLookup walks one listing from the admin conversation through
// the channel post to a buyer lookup, all over the same store.
func TestAddPublishLookup(t *testing.T) {
	ctx := context.Background()
	const text = "2+kk Praha 5, 18 000 Kč"

	listings := newMemListingRepo()
	deliveries := newMemDeliveryRepo()
	adminBot, channelBot, buyerBot := &fakeBot{}, &fakeBot{}, &fakeBot{}

	addFlow := NewAddFlowUseCase(memory.NewSessionRepo(), memory.NewChatLocks(), listings, adminBot, keyTranslator{}, testAdminID, &nopLog)
	publish := NewPublishUseCase(listings, channelBot, keyTranslator{}, testChannel, testAdminID, &nopLog)
	purchase := NewPurchaseUseCase(listings, listings, deliveries, buyerBot, keyTranslator{}, nil, demoConfig(), &nopLog)

	if err := addFlow.Start(ctx, adminChat, testAdminID, "A101"); err != nil {
		t.Fatal(err)
	}
	steps := []func() error{
		func() error { _, err := addFlow.HandleText(ctx, adminChat, testAdminID, text); return err },
		func() error { return addFlow.HandleAction(ctx, adminChat, testAdminID, flow.ActionTextOK) },
		func() error { return addFlow.HandleAction(ctx, adminChat, testAdminID, flow.ActionNoLink) },
		func() error { _, err := addFlow.HandleText(ctx, adminChat, testAdminID, "full original text"); return err },
		func() error { _, err := addFlow.HandleText(ctx, adminChat, testAdminID, "https://t.me/owner"); return err },
		func() error { return addFlow.HandleAction(ctx, adminChat, testAdminID, flow.ActionPhotosNo) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("add flow step %d: %v", i+1, err)
		}
	}
	draft, err := listings.FindByID(ctx, "A101")
	if err != nil || draft.Status != model.ListingStatusDraft {
		t.Fatalf("draft = %+v, err = %v", draft, err)
	}

	if err := publish.Publish(ctx, testAdminID, "A101"); err != nil {
		t.Fatal(err)
	}
	post := channelBot.last()
	if post.To != testChannel || post.Text != text {
		t.Fatalf("channel post = %+v", post)
	}
	if l, _ := listings.FindByID(ctx, "A101"); l.Status != model.ListingStatusPublished {
		t.Fatalf("status after publish = %s", l.Status)
	}

	if err := purchase.Lookup(ctx, buyerChat, buyerChat, "a101"); err != nil {
		t.Fatal(err)
	}
	if got := buyerBot.last().Text; got != "listing_confirm|A101|"+text {
		t.Errorf("buyer lookup = %q, want the published channel text", got)
	}
}
