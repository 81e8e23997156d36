package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/i18n"
	"github.com/bizzbazzar/bazaar/pkg/ledger"
	"github.com/bizzbazzar/bazaar/pkg/logger"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

// requireAdmin reports whether from may run admin commands and tells them
// when they may not.
func (b *Broker) requireAdmin(ctx context.Context, from bus.Address) bool {
	if b.isAdmin(from) {
		return true
	}
	b.send(ctx, from, i18n.T(b.lang(from), i18n.KeyAdminOnly))
	return false
}

func (b *Broker) verifySeller(ctx context.Context, from bus.Address, id string) {
	if !b.requireAdmin(ctx, from) {
		return
	}
	if id == "" {
		b.send(ctx, from, "Usage: `/verify <seller id>`")
		return
	}
	awaiting, ok := b.store.FindSeller(store.Awaiting, id)
	if !ok {
		b.send(ctx, from, fmt.Sprintf("❓ No seller awaiting verification with id %s.", id))
		return
	}
	seller, err := b.store.Relocate(awaiting.Address, store.Verified)
	if err != nil {
		logger.ErrorCF("broker", "Failed to verify seller", map[string]interface{}{
			"seller": awaiting.Address,
			"error":  err.Error(),
		})
		return
	}

	now := b.now()
	seller.Verified = true
	seller.VerifiedAt = &now
	seller.Stage = store.StageDone
	b.saveSellers(ctx)

	b.send(ctx, from, fmt.Sprintf("✅ *%s* (%s) is now a verified seller.", seller.Shop, seller.Address.LocalID()))
	b.send(ctx, seller.Address, fmt.Sprintf("🎉 *Congratulations!* Your shop *%s* has been verified.\n\n"+
		"You will now receive buyer requests for your categories. Reply to a request message with your price and availability.\n\n"+
		"Type `join seller` to manage your categories, or `pause` to stop receiving requests for a while.", seller.Shop))
	logger.InfoCF("broker", "Seller verified", map[string]interface{}{
		"seller": seller.Address,
		"by":     from,
	})
}

func (b *Broker) listAwaitingSellers(ctx context.Context, from bus.Address) {
	if !b.requireAdmin(ctx, from) {
		return
	}
	awaiting := b.store.Sellers(store.Awaiting)
	if len(awaiting) == 0 {
		b.send(ctx, from, "✅ No sellers are awaiting verification.")
		return
	}
	lines := make([]string, 0, len(awaiting))
	for _, s := range awaiting {
		lines = append(lines, SellerLine(s))
	}
	b.send(ctx, from, fmt.Sprintf("⏳ *Sellers awaiting verification (%d):*\n\n%s\n\nApprove with `/verify <seller id>`.",
		len(awaiting), strings.Join(lines, "\n\n")))
}

func (b *Broker) listSellers(ctx context.Context, from bus.Address) {
	if !b.requireAdmin(ctx, from) {
		return
	}
	sellers := b.store.Sellers(store.Verified)
	if len(sellers) == 0 {
		b.send(ctx, from, "No verified sellers yet.")
		return
	}
	var counts map[bus.Address]int
	if b.ledger != nil {
		counts = ledger.CountBySeller(b.ledger.Query(ledger.Filter{}))
	}
	lines := make([]string, 0, len(sellers))
	for _, s := range sellers {
		line := SellerLine(s)
		if s.Paused {
			line += "\n  ⏸️ Paused"
		}
		if counts != nil {
			line += fmt.Sprintf("\n  Offers sent: %d", counts[s.Address])
		}
		lines = append(lines, line)
	}
	b.send(ctx, from, fmt.Sprintf("🏪 *Verified sellers (%d):*\n\n%s", len(sellers), strings.Join(lines, "\n\n")))
}

func (b *Broker) help(ctx context.Context, from bus.Address) {
	var sb strings.Builder
	sb.WriteString("🆘 *Bizz Bazzar Help*\n\n")
	sb.WriteString("*Buyers*\n• `start` – find a product in nearby shops\n• `cancel` – stop the current step\n\n")
	sb.WriteString("*Sellers*\n• `join seller` – register or manage categories\n• `/pending` – see unanswered requests\n")
	sb.WriteString("• `pause` / `resume` – stop or restart new requests\n• `cancel all` – drop every open request\n\n")
	sb.WriteString("• `language` – choose English or தமிழ்\n")
	if b.isAdmin(from) {
		sb.WriteString("\n*Admin*\n• `/pending admin` – registrations to review\n• `/verify <id>` – approve a seller\n• `/sellers` – list verified sellers\n")
	}
	if len(b.opts.SupportContacts) > 0 {
		sb.WriteString("\n📞 *Support:* ")
		sb.WriteString(strings.Join(b.opts.SupportContacts, ", "))
	}
	b.send(ctx, from, strings.TrimRight(sb.String(), "\n"))
}

// notifyAdmins tells every admin about a registration waiting for review.
func (b *Broker) notifyAdmins(ctx context.Context, seller *store.Seller) {
	text := fmt.Sprintf("🆕 *New seller registration*\n\n%s\n\nApprove with `/verify %s`.",
		SellerLine(seller), seller.Address.LocalID())
	for _, admin := range b.adminAddresses(seller.Address.Channel()) {
		b.send(ctx, admin, text)
	}
}
