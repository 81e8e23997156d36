package broker

import (
	"context"
	"strings"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/i18n"
	"github.com/bizzbazzar/bazaar/pkg/logger"
	"github.com/bizzbazzar/bazaar/pkg/session"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

type keyword int

const (
	kwNone keyword = iota
	kwCancel
	kwCancelAll
	kwPause
	kwResume
	kwPending
	kwPendingAdmin
	kwVerify
	kwSellers
	kwHelp
	kwLanguage
	kwStart
	kwJoinSeller
)

// parseKeyword recognizes the global commands. The argument is only set for
// /verify and keeps its original case.
func parseKeyword(text string) (keyword, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return kwNone, ""
	}
	norm := strings.ToLower(strings.Join(fields, " "))
	switch norm {
	case "cancel", "exit":
		return kwCancel, ""
	case "cancel all":
		return kwCancelAll, ""
	case "pause":
		return kwPause, ""
	case "resume":
		return kwResume, ""
	case "/pending":
		return kwPending, ""
	case "/pending admin":
		return kwPendingAdmin, ""
	case "/sellers":
		return kwSellers, ""
	case "/help", "help":
		return kwHelp, ""
	case "language", "lang", "மொழி":
		return kwLanguage, ""
	case "start":
		return kwStart, ""
	case "join seller":
		return kwJoinSeller, ""
	}
	if strings.ToLower(fields[0]) == "/verify" {
		if len(fields) == 2 {
			return kwVerify, fields[1]
		}
		return kwVerify, ""
	}
	return kwNone, ""
}

func (b *Broker) dispatch(ctx context.Context, msg bus.InboundMessage) error {
	if msg.IsGroup {
		logger.DebugCF("broker", "Ignoring group message", map[string]interface{}{
			"chat_id": msg.ChatID,
			"channel": msg.Channel,
		})
		return nil
	}

	from := msg.From()
	now := b.now()
	b.sessions.Touch(from, now)
	text := strings.TrimSpace(msg.Content)
	kw, arg := parseKeyword(text)

	if kw == kwNone {
		// An open language menu outranks the welcome so a new identity can
		// choose a language before saying anything else.
		if b.sessions.TakeLanguageMenu(from) {
			if lang, ok := i18n.FromMenu(text); ok {
				b.setLanguage(ctx, from, lang)
				return nil
			}
		}
		if !b.store.Known(from) && b.sessions.Resolve(from) == session.FlowNone {
			b.welcome(ctx, from)
			return nil
		}
		if fi, ok := b.store.FirstInteraction(from); ok && fi.AwaitingProductInput &&
			b.sessions.Resolve(from) == session.FlowNone {
			return b.captureFirstProduct(ctx, from, fi, text)
		}
	}

	if kw != kwNone {
		return b.handleKeyword(ctx, msg, kw, arg)
	}

	switch b.sessions.Resolve(from) {
	case session.FlowBuyerIntake:
		return b.stepIntake(ctx, msg)
	case session.FlowSellerRegistration:
		return b.stepRegistration(ctx, msg)
	case session.FlowSellerCategoryManagement:
		return b.stepDashboard(ctx, msg)
	}

	if _, ok := b.store.VerifiedSeller(from); ok {
		handled, err := b.negotiate(ctx, msg)
		if handled || err != nil {
			return err
		}
	}
	b.unrelated(ctx, from)
	return nil
}

func (b *Broker) handleKeyword(ctx context.Context, msg bus.InboundMessage, kw keyword, arg string) error {
	from := msg.From()
	switch kw {
	case kwCancel:
		return b.cancel(ctx, from)
	case kwCancelAll:
		b.cancelAll(ctx, from)
	case kwPause:
		b.setPaused(ctx, from, true)
	case kwResume:
		b.setPaused(ctx, from, false)
	case kwPending:
		b.listPending(ctx, from)
	case kwPendingAdmin:
		b.listAwaitingSellers(ctx, from)
	case kwVerify:
		b.verifySeller(ctx, from, arg)
	case kwSellers:
		b.listSellers(ctx, from)
	case kwHelp:
		b.help(ctx, from)
	case kwLanguage:
		b.sessions.OfferLanguageMenu(from, b.now())
		b.send(ctx, from, i18n.T(b.lang(from), i18n.KeyLanguageMenu))
	case kwStart:
		return b.start(ctx, from)
	case kwJoinSeller:
		return b.joinSeller(ctx, from)
	}
	return nil
}

// welcome greets an identity the broker has never seen and waits for a product name.
func (b *Broker) welcome(ctx context.Context, from bus.Address) {
	lang := b.lang(from)
	b.send(ctx, from, i18n.T(lang, i18n.KeyWelcome))
	b.send(ctx, from, msgWelcomePitch)
	b.send(ctx, from, msgWelcomeHow)
	b.send(ctx, from, i18n.T(lang, i18n.KeyAskProduct))

	b.store.PutFirstInteraction(&store.FirstInteraction{
		Address:              from,
		FirstSeenAt:          b.now(),
		AwaitingProductInput: true,
	})
	b.saveFirstInteractions(ctx)
	logger.InfoCF("broker", "New identity welcomed", map[string]interface{}{"from": from})
}

// captureFirstProduct opens a first-time intake with the product already named.
func (b *Broker) captureFirstProduct(ctx context.Context, from bus.Address, fi *store.FirstInteraction, text string) error {
	if len([]rune(text)) < 2 {
		b.send(ctx, from, msgInvalidProduct)
		return nil
	}
	in, err := b.sessions.BeginIntake(from, session.StageProduct, true, b.now())
	if err != nil {
		return err
	}
	fi.AwaitingProductInput = false
	b.saveFirstInteractions(ctx)

	in.Product = text
	// First-time buyers are not asked for a brand.
	return b.skipBrand(ctx, in)
}

func (b *Broker) setLanguage(ctx context.Context, from bus.Address, lang i18n.Lang) {
	b.store.SetLanguage(from, string(lang))
	if err := b.store.SaveLanguages(ctx); err != nil {
		logger.ErrorCF("broker", "Failed to save languages", map[string]interface{}{"error": err.Error()})
	}
	b.send(ctx, from, i18n.T(lang, i18n.KeyLanguageSet))
}

// cancel ends whatever flow from is in.
func (b *Broker) cancel(ctx context.Context, from bus.Address) error {
	lang := b.lang(from)
	switch b.sessions.Resolve(from) {
	case session.FlowSellerReplyDecision:
		return b.cancelDecision(ctx, from)

	case session.FlowBuyerIntake:
		b.sessions.EndIntake(from)
		b.send(ctx, from, i18n.T(lang, i18n.KeyCancelled))
		b.sendGuide(ctx, from, b.opts.BuyerGuide, msgReadyAgain)

	case session.FlowSellerRegistration:
		reg, _ := b.sessions.Registration(from)
		b.sessions.EndRegistration(from)
		now := b.now()
		b.store.PutSeller(store.Incomplete, &store.Seller{
			Address:     from,
			Shop:        reg.Shop,
			Location:    reg.Location,
			Stage:       reg.Stage,
			CancelledAt: &now,
		})
		b.saveSellers(ctx)
		b.send(ctx, from, msgRegCancelled)

	case session.FlowSellerCategoryManagement:
		seller, _ := b.store.VerifiedSeller(from)
		now := b.now()
		seller.Stage = store.StageDone
		seller.StageUpdatedAt = &now
		b.saveSellers(ctx)
		b.send(ctx, from, msgDashCancelled)

	default:
		b.send(ctx, from, i18n.T(lang, i18n.KeyNothingToStop))
	}
	return nil
}

// start opens a buyer intake. An intake already in progress starts over.
func (b *Broker) start(ctx context.Context, from bus.Address) error {
	switch flow := b.sessions.Resolve(from); flow {
	case session.FlowNone:
	case session.FlowBuyerIntake:
		b.sessions.EndIntake(from)
	default:
		b.send(ctx, from, i18n.T(b.lang(from), i18n.KeyFlowActive))
		return nil
	}

	if fi, ok := b.store.FirstInteraction(from); ok && fi.AwaitingProductInput {
		fi.AwaitingProductInput = false
		b.saveFirstInteractions(ctx)
	}

	stage := session.StageAskName
	if _, ok := b.store.Buyer(from); ok {
		stage = session.StageProduct
	}
	in, err := b.sessions.BeginIntake(from, stage, false, b.now())
	if err != nil {
		return err
	}
	b.promptIntake(ctx, in)
	if stage == session.StageProduct {
		b.send(ctx, from, msgCancelHint)
	}
	return nil
}

// unrelated answers a message that belongs to no flow and no request.
func (b *Broker) unrelated(ctx context.Context, from bus.Address) {
	lang := b.lang(from)
	if len(b.store.RequestsForBuyer(from)) > 0 {
		b.send(ctx, from, i18n.T(lang, i18n.KeyProcessing))
		return
	}
	if buyer, ok := b.store.Buyer(from); ok && buyer.FirstRequestCompleted && !buyer.FirstRequestAcknowledged {
		buyer.FirstRequestAcknowledged = true
		b.saveBuyers(ctx)
		b.send(ctx, from, msgFirstRequestDone)
		return
	}
	if b.store.Known(from) {
		b.send(ctx, from, msgWelcomeBack)
		return
	}
	b.send(ctx, from, i18n.T(lang, i18n.KeyStartHint))
}
