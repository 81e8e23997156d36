package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/classifier"
	"github.com/bizzbazzar/bazaar/pkg/logger"
	"github.com/bizzbazzar/bazaar/pkg/session"
	"github.com/bizzbazzar/bazaar/pkg/store"
	"github.com/bizzbazzar/bazaar/pkg/utils"
)

var (
	errNoImage    = errors.New("no image attached")
	errNotAnImage = errors.New("attachment is not an image")
)

// advance moves the intake and sends the prompt for its new stage.
func (b *Broker) advance(ctx context.Context, in *session.Intake, to session.Stage) error {
	if err := in.Advance(to); err != nil {
		return err
	}
	in.UpdatedAt = b.now()
	b.promptIntake(ctx, in)
	return nil
}

// skipBrand moves a first-time buyer from product straight to quantity.
func (b *Broker) skipBrand(ctx context.Context, in *session.Intake) error {
	if err := in.Advance(session.StageBrand); err != nil {
		return err
	}
	return b.advance(ctx, in, session.StageQuantity)
}

func (b *Broker) promptIntake(ctx context.Context, in *session.Intake) {
	to := in.Buyer
	switch in.Stage {
	case session.StageAskName:
		b.send(ctx, to, msgRegisterName)
	case session.StageAskAge:
		b.send(ctx, to, msgRegisterAge)
	case session.StageAskLocation:
		b.send(ctx, to, msgRegisterLocation)
	case session.StageProduct:
		b.send(ctx, to, msgProductPrompt)
	case session.StageBrand:
		b.send(ctx, to, progressBar(2, 5)+"\n\n"+msgBrandPrompt)
	case session.StageQuantity:
		if in.FirstTime {
			b.send(ctx, to, msgFirstQuantity)
			return
		}
		b.send(ctx, to, progressBar(3, 5)+"\n\n"+msgQuantityPrompt)
	case session.StageRequirements:
		if in.FirstTime {
			b.send(ctx, to, msgFirstDetails)
			return
		}
		b.send(ctx, to, progressBar(4, 5)+"\n\n"+msgDetailsPrompt)
	case session.StageImage:
		if in.FirstTime {
			b.send(ctx, to, msgFirstImage)
			return
		}
		b.send(ctx, to, progressBar(5, 5)+"\n\n"+msgImagePrompt)
	case session.StageCategory, session.StageEditCategory:
		b.send(ctx, to, CategoryMenuText(msgManualCategory, catalog.BuyerMenu))
	case session.StageConfirm:
		b.send(ctx, to, ConfirmIntakeText(in))
	case session.StageEditChoice:
		b.send(ctx, to, EditMenuText(in))
	case session.StageEditProduct:
		b.send(ctx, to, msgEditProduct)
	case session.StageEditBrand:
		b.send(ctx, to, msgEditBrand)
	case session.StageEditQuantity:
		b.send(ctx, to, msgEditQuantity)
	case session.StageEditRequirements:
		b.send(ctx, to, msgEditDetails)
	case session.StageEditImage:
		b.send(ctx, to, msgEditImage)
	}
}

func isSkip(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "skip")
}

func optional(text string) string {
	if isSkip(text) {
		return ""
	}
	return strings.TrimSpace(text)
}

func validProduct(text string) bool {
	return len([]rune(strings.TrimSpace(text))) >= 2
}

func (b *Broker) stepIntake(ctx context.Context, msg bus.InboundMessage) error {
	from := msg.From()
	in, ok := b.sessions.Intake(from)
	if !ok {
		return nil
	}
	text := strings.TrimSpace(msg.Content)
	back := text == "0"

	switch in.Stage {
	case session.StageAskName:
		if text == "" {
			b.promptIntake(ctx, in)
			return nil
		}
		in.Name = text
		return b.advance(ctx, in, session.StageAskAge)

	case session.StageAskAge:
		if back {
			return b.advance(ctx, in, session.StageAskName)
		}
		age, err := strconv.Atoi(text)
		if err != nil || age < 1 || age > 120 {
			b.send(ctx, from, msgInvalidAge)
			return nil
		}
		in.Age = age
		return b.advance(ctx, in, session.StageAskLocation)

	case session.StageAskLocation:
		if back {
			return b.advance(ctx, in, session.StageAskAge)
		}
		if msg.Location == nil || !msg.Location.Valid() {
			b.send(ctx, from, msgNeedLocation)
			return nil
		}
		in.Location = msg.Location
		b.registerBuyer(ctx, in)
		return b.advance(ctx, in, session.StageProduct)

	case session.StageProduct:
		if back {
			b.send(ctx, from, msgFirstStep)
			return nil
		}
		if !validProduct(text) {
			b.send(ctx, from, msgInvalidProduct)
			return nil
		}
		in.Product = text
		if in.FirstTime {
			return b.skipBrand(ctx, in)
		}
		return b.advance(ctx, in, session.StageBrand)

	case session.StageBrand:
		if back {
			return b.advance(ctx, in, session.StageProduct)
		}
		in.Brand = optional(text)
		return b.advance(ctx, in, session.StageQuantity)

	case session.StageQuantity:
		if back && in.FirstTime {
			return b.advance(ctx, in, session.StageProduct)
		}
		if back {
			return b.advance(ctx, in, session.StageBrand)
		}
		in.Quantity = optional(text)
		return b.advance(ctx, in, session.StageRequirements)

	case session.StageRequirements:
		if back {
			return b.advance(ctx, in, session.StageQuantity)
		}
		in.Requirements = StructureRequirements(optional(text))
		return b.advance(ctx, in, session.StageImage)

	case session.StageImage:
		if back {
			return b.advance(ctx, in, session.StageRequirements)
		}
		if isSkip(text) {
			in.ImageID = ""
			return b.classify(ctx, in, session.StageCategory)
		}
		if !b.takeImage(ctx, in, msg) {
			return nil
		}
		return b.classify(ctx, in, session.StageCategory)

	case session.StageCategory:
		if back {
			return b.advance(ctx, in, session.StageImage)
		}
		c, ok := catalog.BuyerMenu.Parse(text)
		if !ok {
			b.send(ctx, from, CategoryMenuText(msgInvalidCategory, catalog.BuyerMenu))
			return nil
		}
		in.Category = c
		return b.advance(ctx, in, session.StageConfirm)

	case session.StageConfirm:
		switch strings.ToLower(text) {
		case "1", "confirm":
			return b.route(ctx, in)
		case "2", "edit":
			return b.advance(ctx, in, session.StageEditChoice)
		case "0", "back":
			return b.advance(ctx, in, session.StageRequirements)
		}
		b.send(ctx, from, msgConfirmOptions)
		return nil

	case session.StageEditChoice:
		return b.editChoice(ctx, in, text)

	case session.StageEditProduct:
		if !validProduct(text) {
			b.send(ctx, from, msgInvalidProduct)
			return nil
		}
		in.Product = text
		in.Category = ""
		return b.classify(ctx, in, session.StageEditCategory)

	case session.StageEditBrand:
		in.Brand = optional(text)
		return b.advance(ctx, in, session.StageConfirm)

	case session.StageEditQuantity:
		in.Quantity = optional(text)
		return b.advance(ctx, in, session.StageConfirm)

	case session.StageEditRequirements:
		in.Requirements = StructureRequirements(optional(text))
		return b.advance(ctx, in, session.StageConfirm)

	case session.StageEditImage:
		if isSkip(text) {
			in.ImageID = ""
			return b.advance(ctx, in, session.StageConfirm)
		}
		if !b.takeImage(ctx, in, msg) {
			return nil
		}
		return b.advance(ctx, in, session.StageConfirm)

	case session.StageEditCategory:
		c, ok := catalog.BuyerMenu.Parse(text)
		if !ok {
			b.send(ctx, from, CategoryMenuText(msgInvalidCategory, catalog.BuyerMenu))
			return nil
		}
		in.Category = c
		return b.advance(ctx, in, session.StageConfirm)
	}
	return fmt.Errorf("intake for %s in unhandled stage %q", from, in.Stage)
}

var editTargets = map[int]session.Stage{
	1: session.StageEditProduct,
	2: session.StageEditBrand,
	3: session.StageEditQuantity,
	4: session.StageEditRequirements,
	5: session.StageEditImage,
	6: session.StageEditCategory,
}

func (b *Broker) editChoice(ctx context.Context, in *session.Intake, text string) error {
	n, ok := catalog.ParseNumber(text)
	switch {
	case !ok || n > 7:
		b.send(ctx, in.Buyer, msgEditOptions)
		return nil
	case n == 0:
		return b.advance(ctx, in, session.StageConfirm)
	case n == 7:
		in.Reset()
		in.UpdatedAt = b.now()
		b.promptIntake(ctx, in)
		return nil
	}
	return b.advance(ctx, in, editTargets[n])
}

// takeImage stores the first image of msg on the intake. It reports false,
// after telling the buyer why, when there is nothing usable.
func (b *Broker) takeImage(ctx context.Context, in *session.Intake, msg bus.InboundMessage) bool {
	id, err := b.storeImage(in.Buyer, msg.Media)
	switch {
	case errors.Is(err, errNoImage):
		b.send(ctx, in.Buyer, msgNeedImage)
		return false
	case errors.Is(err, errNotAnImage):
		b.send(ctx, in.Buyer, msgImageOnly)
		return false
	case err != nil:
		logger.WarnCF("broker", "Failed to store buyer image", map[string]interface{}{
			"buyer": in.Buyer,
			"error": err.Error(),
		})
		b.send(ctx, in.Buyer, msgImageFailed)
		return false
	}
	in.ImageID = id
	b.send(ctx, in.Buyer, msgImageReceived)
	return true
}

func (b *Broker) storeImage(owner bus.Address, media []string) (string, error) {
	if len(media) == 0 {
		return "", errNoImage
	}
	var path string
	for _, p := range media {
		if utils.IsImageFile(p) {
			path = p
			break
		}
	}
	if path == "" {
		return "", errNotAnImage
	}
	if b.images == nil {
		return "", errors.New("image storage is not configured")
	}
	rec, err := b.images.SaveFromLocalFile(owner, path)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// classify asks the classifier for the category and falls back to the manual
// menu at manual when it cannot decide.
func (b *Broker) classify(ctx context.Context, in *session.Intake, manual session.Stage) error {
	details := strings.TrimSpace(strings.Join([]string{in.Brand, in.Quantity, in.Requirements}, " "))
	c, err := b.classifier.Classify(ctx, in.Product, details)
	if err != nil {
		logger.WarnCF("broker", "Classification failed, asking buyer", map[string]interface{}{
			"product": in.Product,
			"error":   err.Error(),
			"outage":  errors.Is(err, classifier.ErrUnavailable),
		})
	}
	if err != nil || c == catalog.Unknown || c == catalog.Supermarket || !catalog.Valid(c) {
		return b.advance(ctx, in, manual)
	}
	in.Category = c
	logger.DebugCF("broker", "Product classified", map[string]interface{}{
		"product":  in.Product,
		"category": string(c),
	})
	return b.advance(ctx, in, session.StageConfirm)
}

// registerBuyer persists the one-time buyer profile gathered by the intake.
func (b *Broker) registerBuyer(ctx context.Context, in *session.Intake) {
	b.store.PutBuyer(&store.Buyer{
		Address:      in.Buyer,
		Name:         in.Name,
		Age:          in.Age,
		Location:     in.Location,
		RegisteredAt: b.now(),
	})
	b.saveBuyers(ctx)
	b.send(ctx, in.Buyer, msgBuyerAllSet)
	b.sendGuide(ctx, in.Buyer, b.opts.BuyerGuide, msgReadyAgain)
	logger.InfoCF("broker", "Buyer registered", map[string]interface{}{"buyer": in.Buyer})
}
