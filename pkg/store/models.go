package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/geo"
)

type SellerStage string

const (
	StageAwaitingShopName       SellerStage = "awaiting_shop_name"
	StageAwaitingLocation       SellerStage = "awaiting_location"
	StageAwaitingCategory       SellerStage = "awaiting_category"
	StageDone                   SellerStage = "done"
	StageAwaitingCategoryAction SellerStage = "awaiting_category_action"
	StageAwaitingAddCategory    SellerStage = "awaiting_add_category"
	StageAwaitingRemoveCategory SellerStage = "awaiting_remove_category"
)

// Managing reports whether the stage belongs to the category dashboard.
func (s SellerStage) Managing() bool {
	switch s {
	case StageAwaitingCategoryAction, StageAwaitingAddCategory, StageAwaitingRemoveCategory:
		return true
	}
	return false
}

var sellerTransitions = map[SellerStage][]SellerStage{
	StageAwaitingShopName:       {StageAwaitingLocation},
	StageAwaitingLocation:       {StageAwaitingCategory},
	StageAwaitingCategory:       {StageDone},
	StageDone:                   {StageAwaitingCategoryAction},
	StageAwaitingCategoryAction: {StageAwaitingAddCategory, StageAwaitingRemoveCategory, StageDone},
	StageAwaitingAddCategory:    {StageDone},
	StageAwaitingRemoveCategory: {StageDone},
}

// CanTransition reports whether a seller may move from one stage to another.
// Every stage may stay where it is.
func CanTransition(from, to SellerStage) bool {
	if from == to {
		return true
	}
	for _, next := range sellerTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FlexibleBool decodes JSON booleans and the strings "true"/"false".
type FlexibleBool bool

func (b *FlexibleBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = FlexibleBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = FlexibleBool(strings.EqualFold(strings.TrimSpace(s), "true"))
	return nil
}

type Seller struct {
	Address              bus.Address        `json:"address"`
	Shop                 string             `json:"shop"`
	Location             *geo.Point         `json:"location,omitempty"`
	Category             catalog.Category   `json:"category"`
	AdditionalCategories []catalog.Category `json:"additional_categories,omitempty"`
	Verified             FlexibleBool       `json:"verified"`
	Paused               bool               `json:"paused,omitempty"`
	Stage                SellerStage        `json:"stage"`
	StageUpdatedAt       *time.Time         `json:"stage_updated_at,omitempty"`
	RegisteredAt         *time.Time         `json:"registered_at,omitempty"`
	VerifiedAt           *time.Time         `json:"verified_at,omitempty"`
	CancelledAt          *time.Time         `json:"cancelled_at,omitempty"`
}

// Categories returns the primary category followed by the additional ones.
func (s *Seller) Categories() []catalog.Category {
	out := make([]catalog.Category, 0, 1+len(s.AdditionalCategories))
	if s.Category != "" {
		out = append(out, s.Category)
	}
	return append(out, s.AdditionalCategories...)
}

// Serves reports whether c is the primary or an additional category.
func (s *Seller) Serves(c catalog.Category) bool {
	for _, have := range s.Categories() {
		if have == c {
			return true
		}
	}
	return false
}

// AddCategory appends c to the additional set. It reports false when the
// seller already serves c.
func (s *Seller) AddCategory(c catalog.Category) bool {
	if s.Serves(c) {
		return false
	}
	s.AdditionalCategories = append(s.AdditionalCategories, c)
	return true
}

// RemoveCategory drops c from the additional set. The primary category is fixed.
func (s *Seller) RemoveCategory(c catalog.Category) bool {
	for i, have := range s.AdditionalCategories {
		if have == c {
			s.AdditionalCategories = append(s.AdditionalCategories[:i], s.AdditionalCategories[i+1:]...)
			if len(s.AdditionalCategories) == 0 {
				s.AdditionalCategories = nil
			}
			return true
		}
	}
	return false
}

type Buyer struct {
	Address                  bus.Address `json:"address"`
	Name                     string      `json:"name"`
	Age                      int         `json:"age,omitempty"`
	Location                 *geo.Point  `json:"location,omitempty"`
	RegisteredAt             time.Time   `json:"registered_at"`
	FirstRequestCompleted    bool        `json:"first_request_completed,omitempty"`
	FirstRequestCompletedAt  *time.Time  `json:"first_request_completed_at,omitempty"`
	FirstRequestAcknowledged bool        `json:"first_request_acknowledged,omitempty"`
}

type ConfirmationStage string

const (
	ConfirmNone             ConfirmationStage = ""
	ConfirmAwaitingDecision ConfirmationStage = "awaiting_confirmation"
	ConfirmAwaitingEdit     ConfirmationStage = "awaiting_edit"
)

// Payload is the buyer's structured request as fanned out to sellers.
type Payload struct {
	Product      string `json:"product"`
	Brand        string `json:"brand,omitempty"`
	Quantity     string `json:"quantity,omitempty"`
	Requirements string `json:"requirements,omitempty"`
	ImageID      string `json:"image_id,omitempty"`
}

func (p Payload) HasImage() bool { return p.ImageID != "" }

type PendingRequest struct {
	Key                string            `json:"key"`
	RequestID          string            `json:"request_id"`
	Seller             bus.Address       `json:"seller"`
	Buyer              bus.Address       `json:"buyer"`
	Category           catalog.Category  `json:"category"`
	Payload            Payload           `json:"payload"`
	Confirmation       ConfirmationStage `json:"confirmation,omitempty"`
	FormattedReply     string            `json:"formatted_reply,omitempty"`
	BuyerRendering     string            `json:"buyer_rendering,omitempty"`
	BroadcastRendering string            `json:"broadcast_rendering,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	ReminderSent       bool              `json:"reminder_sent,omitempty"`
}

// Deciding reports whether the seller is inside the confirm/edit exchange.
func (r *PendingRequest) Deciding() bool {
	return r.Confirmation == ConfirmAwaitingDecision || r.Confirmation == ConfirmAwaitingEdit
}

type FirstInteraction struct {
	Address              bus.Address `json:"address"`
	FirstSeenAt          time.Time   `json:"first_seen_at"`
	AwaitingProductInput bool        `json:"awaiting_product_input,omitempty"`
}
