// Package session tracks which multi-step dialogue each party is in.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/geo"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

var (
	ErrFlowActive        = errors.New("another flow is active")
	ErrIllegalTransition = errors.New("illegal stage transition")
)

type Flow int

const (
	FlowNone Flow = iota
	FlowBuyerIntake
	FlowSellerRegistration
	FlowSellerCategoryManagement
	FlowSellerReplyDecision
)

func (f Flow) String() string {
	switch f {
	case FlowBuyerIntake:
		return "buyer-intake"
	case FlowSellerRegistration:
		return "seller-registration"
	case FlowSellerCategoryManagement:
		return "seller-category-management"
	case FlowSellerReplyDecision:
		return "seller-reply-decision"
	default:
		return "none"
	}
}

// Stage is a step of the buyer intake dialogue.
type Stage string

const (
	StageAskName      Stage = "ask_name"
	StageAskAge       Stage = "ask_age"
	StageAskLocation  Stage = "ask_location"
	StageProduct      Stage = "product"
	StageBrand        Stage = "brand"
	StageQuantity     Stage = "quantity"
	StageRequirements Stage = "requirements"
	StageImage        Stage = "image"
	StageCategory     Stage = "category"
	StageConfirm      Stage = "confirm"
	StageEditChoice   Stage = "edit_choice"

	StageEditProduct      Stage = "edit_product"
	StageEditBrand        Stage = "edit_brand"
	StageEditQuantity     Stage = "edit_quantity"
	StageEditRequirements Stage = "edit_requirements"
	StageEditImage        Stage = "edit_image"
	StageEditCategory     Stage = "edit_category"
)

// Editing reports whether s edits a single field and then returns to confirm.
func (s Stage) Editing() bool {
	return strings.HasPrefix(string(s), "edit_") && s != StageEditChoice
}

// intakeTransitions lists the legal next stages. "0" (back) and "start over"
// moves are included, so anything absent is a programming error.
var intakeTransitions = map[Stage][]Stage{
	StageAskName:     {StageAskAge},
	StageAskAge:      {StageAskName, StageAskLocation},
	StageAskLocation: {StageAskAge, StageProduct},

	StageProduct:      {StageBrand},
	StageBrand:        {StageProduct, StageQuantity},
	StageQuantity:     {StageProduct, StageBrand, StageRequirements},
	StageRequirements: {StageQuantity, StageImage},
	StageImage:        {StageRequirements, StageCategory, StageConfirm},
	StageCategory:     {StageImage, StageConfirm},
	StageConfirm:      {StageRequirements, StageEditChoice},
	StageEditChoice: {
		StageConfirm, StageProduct,
		StageEditProduct, StageEditBrand, StageEditQuantity,
		StageEditRequirements, StageEditImage, StageEditCategory,
	},

	StageEditProduct:      {StageConfirm, StageEditCategory},
	StageEditBrand:        {StageConfirm},
	StageEditQuantity:     {StageConfirm},
	StageEditRequirements: {StageConfirm},
	StageEditImage:        {StageConfirm},
	StageEditCategory:     {StageConfirm},
}

// CanTransition reports whether the intake may move from one stage to another.
func CanTransition(from, to Stage) bool {
	if from == to {
		return true
	}
	for _, next := range intakeTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Intake is a buyer's in-progress request.
type Intake struct {
	Buyer     bus.Address
	Stage     Stage
	FirstTime bool

	Name     string
	Age      int
	Location *geo.Point

	Product      string
	Brand        string
	Quantity     string
	Requirements string
	ImageID      string
	Category     catalog.Category

	StartedAt time.Time
	UpdatedAt time.Time
}

// Advance moves the intake to the next stage if the move is legal.
func (in *Intake) Advance(to Stage) error {
	if !CanTransition(in.Stage, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, in.Stage, to)
	}
	in.Stage = to
	return nil
}

// Registering reports whether the buyer is still giving name, age and location.
func (in *Intake) Registering() bool {
	switch in.Stage {
	case StageAskName, StageAskAge, StageAskLocation:
		return true
	}
	return false
}

// Reset clears the product fields for a fresh start.
func (in *Intake) Reset() {
	in.Product, in.Brand, in.Quantity, in.Requirements = "", "", "", ""
	in.ImageID = ""
	in.Category = ""
	in.Stage = StageProduct
}

func (in *Intake) Payload() store.Payload {
	return store.Payload{
		Product:      in.Product,
		Brand:        in.Brand,
		Quantity:     in.Quantity,
		Requirements: in.Requirements,
		ImageID:      in.ImageID,
	}
}

// Registration is a seller's in-progress sign-up.
type Registration struct {
	Seller    bus.Address
	Stage     store.SellerStage
	Shop      string
	Location  *geo.Point
	StartedAt time.Time
	UpdatedAt time.Time
}

func (r *Registration) Advance(to store.SellerStage) error {
	if !store.CanTransition(r.Stage, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.Stage, to)
	}
	r.Stage = to
	return nil
}
