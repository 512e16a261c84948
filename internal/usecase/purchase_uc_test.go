//go:build !integration

package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
)

const buyerChat int64 = 4242

type purchaseFixture struct {
	uc         *PurchaseUseCase
	bot        *fakeBot
	listings   *memListingRepo
	deliveries *memDeliveryRepo
}

func newPurchaseFixture(cfg PurchaseConfig, limiter RateLimiter) *purchaseFixture {
	bot := &fakeBot{}
	listings := newMemListingRepo()
	deliveries := newMemDeliveryRepo()
	uc := NewPurchaseUseCase(listings, listings, deliveries, bot, keyTranslator{}, limiter, cfg, &nopLog)
	uc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return &purchaseFixture{uc: uc, bot: bot, listings: listings, deliveries: deliveries}
}

func demoConfig() PurchaseConfig {
	return PurchaseConfig{Price: 1900, Currency: "CZK", Demo: true, SupportUsername: "help_desk"}
}

func (f *purchaseFixture) seed(t *testing.T, l model.Listing) {
	t.Helper()
	if l.ContactLink == "" {
		l.ContactLink = "https://t.me/owner"
	}
	if l.DeliverMode == "" {
		l.DeliverMode = model.DeliverModeText
	}
	if err := f.listings.Upsert(context.Background(), &l); err != nil {
		t.Fatal(err)
	}
}

func TestPurchase_Welcome(t *testing.T) {
	ctx := context.Background()
	f := newPurchaseFixture(demoConfig(), nil)
	f.seed(t, model.Listing{ID: "A101", Text: "flat"})

	if err := f.uc.Welcome(ctx, buyerChat, ""); err != nil {
		t.Fatal(err)
	}
	w := f.bot.last()
	if w.Text != "start_welcome|19 CZK" {
		t.Errorf("welcome = %q", w.Text)
	}
	if got := strings.Join(buttonData(w.Rows), ","); got != "get_contact,https://t.me/help_desk" {
		t.Errorf("welcome buttons = %s", got)
	}

	f.bot.reset()
	if err := f.uc.Welcome(ctx, buyerChat, "a101"); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(f.bot.kinds(), ","); got != "message,message" {
		t.Fatalf("deep link kinds = %s", got)
	}
	if got := f.bot.last().Text; got != "listing_confirm|A101|flat" {
		t.Errorf("deep link lookup = %q", got)
	}
}

func TestPurchase_Lookup(t *testing.T) {
	ctx := context.Background()
	f := newPurchaseFixture(demoConfig(), nil)
	f.seed(t, model.Listing{ID: "A101", Text: "2+kk"})

	if err := f.uc.Lookup(ctx, buyerChat, buyerChat, " a101 "); err != nil {
		t.Fatal(err)
	}
	m := f.bot.last()
	if m.Text != "listing_confirm|A101|2+kk" {
		t.Errorf("lookup = %q", m.Text)
	}
	if got := strings.Join(buttonData(m.Rows), ","); got != "confirm:A101,get_contact" {
		t.Errorf("lookup buttons = %s", got)
	}

	for _, raw := range []string{"Z999", "hello", ""} {
		if err := f.uc.Lookup(ctx, buyerChat, buyerChat, raw); err != nil {
			t.Fatal(err)
		}
		if got := f.bot.last().Text; got != "listing_not_found" {
			t.Errorf("Lookup(%q) = %q", raw, got)
		}
	}
}

func TestPurchase_LookupRateLimited(t *testing.T) {
	lim := &stubLimiter{allow: false}
	f := newPurchaseFixture(demoConfig(), lim)
	f.seed(t, model.Listing{ID: "A101", Text: "t"})

	if err := f.uc.Lookup(context.Background(), buyerChat, buyerChat, "A101"); err != nil {
		t.Fatal(err)
	}
	if lim.hits != 1 || f.bot.last().Text != "rate_limited" {
		t.Errorf("hits=%d last=%q", lim.hits, f.bot.last().Text)
	}
}

func TestPurchase_ConfirmShowsPrice(t *testing.T) {
	ctx := context.Background()
	f := newPurchaseFixture(demoConfig(), nil)
	f.seed(t, model.Listing{ID: "A101", Text: "t"})

	if err := f.uc.Confirm(ctx, buyerChat, "A101"); err != nil {
		t.Fatal(err)
	}
	m := f.bot.last()
	if m.Text != "pay_prompt|19 CZK" || strings.Join(buttonData(m.Rows), ",") != "pay:A101" {
		t.Errorf("confirm = %q %v", m.Text, buttonData(m.Rows))
	}

	if err := f.uc.Confirm(ctx, buyerChat, "B2"); err != nil {
		t.Fatal(err)
	}
	if f.bot.last().Text != "listing_gone" {
		t.Errorf("gone = %q", f.bot.last().Text)
	}
}

func TestPurchase_DemoDelivery(t *testing.T) {
	ctx := context.Background()
	f := newPurchaseFixture(demoConfig(), nil)
	f.seed(t, model.Listing{
		ID:           "A101",
		Text:         "channel text",
		OriginalText: "full original",
		PostURL:      "https://example.com/p/1",
	})

	if err := f.uc.Pay(ctx, buyerChat, buyerChat, "A101"); err != nil {
		t.Fatal(err)
	}

	var texts []string
	for _, s := range f.bot.sent {
		if s.Kind != "message" {
			t.Fatalf("unexpected %s in demo mode", s.Kind)
		}
		texts = append(texts, s.Text)
	}
	want := []string{
		"demo_notice",
		"delivery_confirmed",
		"delivery_original_text|full original",
		"delivery_contact|https://t.me/owner",
		"delivery_post_url|https://example.com/p/1",
	}
	if strings.Join(texts, "\n") != strings.Join(want, "\n") {
		t.Fatalf("delivery:\n%s\nwant:\n%s", strings.Join(texts, "\n"), strings.Join(want, "\n"))
	}
	if got := strings.Join(buttonData(f.bot.sent[3].Rows), ","); got != "https://t.me/help_desk" {
		t.Errorf("contact buttons = %s", got)
	}

	if len(f.deliveries.byCharg) != 1 {
		t.Fatalf("ledger = %d entries", len(f.deliveries.byCharg))
	}
	for charge, d := range f.deliveries.byCharg {
		if !strings.HasPrefix(charge, "demo-") || d.Mode != model.DeliveryModeDemo || d.ListingID != "A101" || d.BuyerID != buyerChat {
			t.Errorf("ledger entry = %+v", d)
		}
	}
}

func TestPurchase_DeliverFallsBackToChannelText(t *testing.T) {
	f := newPurchaseFixture(demoConfig(), nil)
	l := &model.Listing{ID: "A1", Text: "channel", ContactLink: "c", DeliverMode: model.DeliverModeText}
	if err := f.uc.Deliver(context.Background(), buyerChat, l); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(f.bot.kinds(), ","); got != "message,message,message" {
		t.Fatalf("kinds = %s, no post URL message expected", got)
	}
	if f.bot.sent[1].Text != "delivery_original_text|channel" {
		t.Errorf("resolved text = %q", f.bot.sent[1].Text)
	}
}

func TestPurchase_InvoiceMode(t *testing.T) {
	ctx := context.Background()
	cfg := demoConfig()
	cfg.Demo = false
	f := newPurchaseFixture(cfg, nil)
	f.seed(t, model.Listing{ID: "A101", Text: "t"})

	if err := f.uc.Pay(ctx, buyerChat, buyerChat, "a101"); err != nil {
		t.Fatal(err)
	}
	inv := f.bot.last()
	if inv.Kind != "invoice" {
		t.Fatalf("kind = %s", inv.Kind)
	}
	if inv.Invoice.Payload != "A101" || inv.Invoice.Amount != 1900 || inv.Invoice.Currency != "CZK" {
		t.Errorf("invoice = %+v", inv.Invoice)
	}
	if len(f.deliveries.byCharg) != 0 {
		t.Error("nothing may be delivered before payment")
	}

	t.Run("invoice failure offers retry", func(t *testing.T) {
		f.bot.reset()
		f.bot.failKind = "invoice"
		if err := f.uc.Pay(ctx, buyerChat, buyerChat, "A101"); err != nil {
			t.Fatal(err)
		}
		m := f.bot.last()
		if !hasPrefix(m.Text, "invoice_failed") || strings.Join(buttonData(m.Rows), ",") != "pay:A101,https://t.me/help_desk" {
			t.Errorf("failure reply = %q %v", m.Text, buttonData(m.Rows))
		}
	})
}

func TestPurchase_PreCheckout(t *testing.T) {
	ctx := context.Background()
	f := newPurchaseFixture(demoConfig(), nil)
	f.seed(t, model.Listing{ID: "A101", Text: "t"})

	if err := f.uc.PreCheckout(ctx, "q1", "A101"); err != nil {
		t.Fatal(err)
	}
	if a := f.bot.last(); !a.OK || a.Text != "q1|" {
		t.Errorf("existing listing answer = %+v", a)
	}

	if err := f.uc.PreCheckout(ctx, "q2", "Z999"); err != nil {
		t.Fatal(err)
	}
	if a := f.bot.last(); a.OK || a.Text != "q2|precheckout_not_found" {
		t.Errorf("missing listing answer = %+v", a)
	}
}

func TestPurchase_PaidDeliveryIsOncePerCharge(t *testing.T) {
	ctx := context.Background()
	f := newPurchaseFixture(demoConfig(), nil)
	f.seed(t, model.Listing{ID: "A101", Text: "t"})
	ev := model.PaymentEvent{ChargeID: "tg-charge-1", Payload: "A101", Currency: "CZK", TotalAmount: 1900, BuyerChatID: buyerChat}

	if err := f.uc.CompletePayment(ctx, ev); err != nil {
		t.Fatal(err)
	}
	first := len(f.bot.sent)
	if first != 3 {
		t.Fatalf("first delivery sent %d messages", first)
	}
	if err := f.uc.CompletePayment(ctx, ev); err != nil {
		t.Fatal(err)
	}
	if len(f.bot.sent) != first {
		t.Errorf("duplicate charge delivered again: %d messages", len(f.bot.sent))
	}
	if d := f.deliveries.byCharg["tg-charge-1"]; d == nil || d.Mode != model.DeliveryModePaid {
		t.Errorf("ledger entry = %+v", d)
	}
}

func TestPurchase_PaymentForDeletedListing(t *testing.T) {
	f := newPurchaseFixture(demoConfig(), nil)
	err := f.uc.CompletePayment(context.Background(), model.PaymentEvent{ChargeID: "c", Payload: "A101", BuyerChatID: buyerChat})
	if !errors.Is(err, domain.ErrPaymentRejected) {
		t.Fatalf("want ErrPaymentRejected, got %v", err)
	}
	if f.bot.last().Text != "listing_gone" || len(f.deliveries.byCharg) != 0 {
		t.Errorf("last=%q ledger=%d", f.bot.last().Text, len(f.deliveries.byCharg))
	}
}

func TestPurchase_DeliveryFailureIsReported(t *testing.T) {
	f := newPurchaseFixture(demoConfig(), nil)
	f.seed(t, model.Listing{ID: "A101", Text: "t"})
	f.bot.failAt = 2

	err := f.uc.CompletePayment(context.Background(), model.PaymentEvent{ChargeID: "c1", Payload: "A101", BuyerChatID: buyerChat})
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("want ErrDeliveryFailed, got %v", err)
	}
	last := f.bot.last()
	if last.Text != "delivery_failed" {
		t.Fatalf("last = %q", last.Text)
	}
	d := f.deliveries.byCharg["c1"]
	if d == nil {
		t.Fatal("ledger entry missing")
	}
	buttons := strings.Join(buttonData(last.Rows), ",")
	if buttons != "redeliver:"+d.ID+",https://t.me/help_desk" {
		t.Errorf("failure buttons = %s", buttons)
	}
	if strings.Contains(buttons, CBPayPrefix) {
		t.Error("a paid delivery failure must not offer a second payment")
	}
}

func TestPurchase_RedeliverFromLedger(t *testing.T) {
	ctx := context.Background()
	f := newPurchaseFixture(demoConfig(), nil)
	f.seed(t, model.Listing{ID: "A101", Text: "t", OriginalText: "full"})
	f.bot.failAt = 2
	ev := model.PaymentEvent{ChargeID: "tg-1", Payload: "A101", Currency: "CZK", TotalAmount: 1900, BuyerChatID: buyerChat}
	if err := f.uc.CompletePayment(ctx, ev); !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("want ErrDeliveryFailed, got %v", err)
	}
	d := f.deliveries.byCharg["tg-1"]
	f.bot.failAt = 0

	t.Run("another user is refused", func(t *testing.T) {
		f.bot.reset()
		if err := f.uc.Redeliver(ctx, 99, 99, d.ID); err != nil {
			t.Fatal(err)
		}
		if got := strings.Join(f.bot.kinds(), ","); got != "message" || f.bot.last().Text != "redelivery_unknown" {
			t.Errorf("stranger got %s %q", got, f.bot.last().Text)
		}
	})

	t.Run("unknown delivery", func(t *testing.T) {
		f.bot.reset()
		if err := f.uc.Redeliver(ctx, buyerChat, buyerChat, "nope"); err != nil {
			t.Fatal(err)
		}
		if f.bot.last().Text != "redelivery_unknown" {
			t.Errorf("got %q", f.bot.last().Text)
		}
	})

	t.Run("buyer gets the payload without a new charge", func(t *testing.T) {
		f.bot.reset()
		if err := f.uc.Redeliver(ctx, buyerChat, buyerChat, d.ID); err != nil {
			t.Fatal(err)
		}
		var texts []string
		for _, s := range f.bot.sent {
			if s.Kind != "message" {
				t.Fatalf("unexpected %s", s.Kind)
			}
			texts = append(texts, s.Text)
		}
		want := "delivery_confirmed,delivery_original_text|full,delivery_contact|https://t.me/owner"
		if strings.Join(texts, ",") != want {
			t.Errorf("redelivery = %v", texts)
		}
		if len(f.deliveries.byCharg) != 1 {
			t.Errorf("ledger grew to %d entries", len(f.deliveries.byCharg))
		}
	})

	t.Run("listing deleted meanwhile", func(t *testing.T) {
		f.bot.reset()
		_, _ = f.listings.Delete(ctx, "A101")
		if err := f.uc.Redeliver(ctx, buyerChat, buyerChat, d.ID); err != nil {
			t.Fatal(err)
		}
		if f.bot.last().Text != "listing_gone" {
			t.Errorf("got %q", f.bot.last().Text)
		}
	})
}

func TestPurchase_PaymentChecksBypassCachedReads(t *testing.T) {
	ctx := context.Background()
	bot := &fakeBot{}
	cached := newMemListingRepo()
	store := newMemListingRepo()
	deliveries := newMemDeliveryRepo()
	uc := NewPurchaseUseCase(cached, store, deliveries, bot, keyTranslator{}, nil, demoConfig(), &nopLog)

	// The cache still holds A101 after the store lost it.
	_ = cached.Upsert(ctx, &model.Listing{ID: "A101", Text: "t", ContactLink: "c", DeliverMode: model.DeliverModeText})

	if err := uc.PreCheckout(ctx, "q1", "A101"); err != nil {
		t.Fatal(err)
	}
	if a := bot.last(); a.OK || a.Text != "q1|precheckout_not_found" {
		t.Fatalf("pre-checkout for a deleted listing = %+v", a)
	}

	err := uc.CompletePayment(ctx, model.PaymentEvent{ChargeID: "ch", Payload: "A101", BuyerChatID: buyerChat})
	if !errors.Is(err, domain.ErrPaymentRejected) || len(deliveries.byCharg) != 0 {
		t.Fatalf("delivery of a deleted listing: err=%v ledger=%d", err, len(deliveries.byCharg))
	}
}

func TestPurchase_FailedFailureReplyIsNotFatal(t *testing.T) {
	f := newPurchaseFixture(demoConfig(), nil)
	f.bot.failKind = "message"
	err := f.uc.CompletePayment(context.Background(), model.PaymentEvent{ChargeID: "c", Payload: "A101", BuyerChatID: buyerChat})
	if !errors.Is(err, domain.ErrPaymentRejected) {
		t.Fatalf("want ErrPaymentRejected even when the reply fails, got %v", err)
	}
}
