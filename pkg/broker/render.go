package broker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/geo"
	"github.com/bizzbazzar/bazaar/pkg/session"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

const divider = "➖➖➖➖➖➖➖➖➖➖"

// priceRe matches amounts with an optional currency on either side and an
// optional magnitude word.
var priceRe = regexp.MustCompile(`(?:(?:Rs|rs|RS)\.?|₹|\$)?\s*[0-9][0-9,]*(?:\.[0-9]+)?(?:\s*(?:k|K|thousand|lakh|L|cr|million)\b)?(?:\s*(?:(?:Rs|rs|RS)\b\.?|/-|₹|\$))?`)

// FormatOffer bolds every price-like token of a seller reply.
func FormatOffer(text string) string {
	out := priceRe.ReplaceAllStringFunc(strings.TrimSpace(text), func(m string) string {
		core := strings.TrimLeft(m, " \t")
		lead := m[:len(m)-len(core)]
		// "450," keeps its list comma outside the bold.
		body := strings.TrimRight(core, " \t,")
		return lead + "*" + body + "*" + core[len(body):]
	})
	return strings.TrimSpace(out)
}

// StructureRequirements renders multi-line requirements as bullets.
func StructureRequirements(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) <= 1 {
		return strings.TrimSpace(text)
	}
	for i, line := range lines {
		lines[i] = "• " + strings.TrimLeft(line, "•-* ")
	}
	return strings.Join(lines, "\n")
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func writePayload(sb *strings.Builder, p store.Payload) {
	fmt.Fprintf(sb, "📦 Product: %s\n", p.Product)
	if p.Brand != "" {
		fmt.Fprintf(sb, "🏷️ Brand: %s\n", p.Brand)
	}
	if p.Quantity != "" {
		fmt.Fprintf(sb, "🔢 Quantity: %s\n", p.Quantity)
	}
	if p.Requirements != "" {
		fmt.Fprintf(sb, "📝 Requirements: %s\n", p.Requirements)
	}
}

// SellerRequestText is the individually addressed request. The Buyer ID line
// lets a quoted reply be traced back to its request.
func SellerRequestText(p store.Payload, buyer bus.Address) string {
	var sb strings.Builder
	sb.WriteString("🛒 *New Buyer Request*\n\n")
	writePayload(&sb, p)
	fmt.Fprintf(&sb, "🆔 Buyer ID: %s\n", buyer.LocalID())
	sb.WriteString("\n💬 *IMPORTANT:* Please reply to this specific message to respond. ")
	sb.WriteString("Use your app's reply feature so your answer reaches the right buyer.\n\n")
	sb.WriteString("📝 Include your price and availability in your reply.\n\n")
	sb.WriteString("❌ Type *\"cancel all\"* to cancel all your active orders.")
	return sb.String()
}

// BroadcastRequestText is the channel version of a request. It carries no buyer id.
func BroadcastRequestText(p store.Payload) string {
	var sb strings.Builder
	sb.WriteString("🛒 *New Buyer Request*\n\n")
	writePayload(&sb, p)
	sb.WriteString("\n💬 *IMPORTANT:* Registered sellers receive this request directly. ")
	sb.WriteString("Reply to that message with your price and availability.")
	return sb.String()
}

// PendingRequestText resends an open request, numbered n.
func PendingRequestText(req *store.PendingRequest, n int, title, via string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🛒 *%s #%d*\n\n", title, n)
	writePayload(&sb, req.Payload)
	fmt.Fprintf(&sb, "🆔 Buyer ID: %s\n", req.Buyer.LocalID())
	fmt.Fprintf(&sb, "\n🔄 *New Buyer Request* (%s)\n", via)
	sb.WriteString("💬 *Please reply directly to this message to confirm your price and availability.*")
	return sb.String()
}

var (
	requestMarkers = []string{
		"New Buyer Request",
		"Pending Buyer Request",
		"IMPORTANT:",
		"Buyer ID:",
		"Reply to this message with your price",
	}
	buyerIDRe = regexp.MustCompile(`Buyer ID:\s*\*?([^\s*]+)`)
	productRe = regexp.MustCompile(`(?i)Product:\s*\*?([^\n*]+)`)
)

// HasRequestMarker reports whether text looks like a request the broker sent.
func HasRequestMarker(text string) bool {
	for _, m := range requestMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// QuotedBuyerID extracts the buyer local id from a quoted request.
func QuotedBuyerID(text string) string {
	if m := buyerIDRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// QuotedProduct extracts the product name from a quoted request.
func QuotedProduct(text string) string {
	if m := productRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// BuyerOfferText is what the buyer receives. Distance and map link need the
// seller's location; distance also needs the buyer's.
func BuyerOfferText(product, offer string, seller *store.Seller, buyerLoc *geo.Point) string {
	var sb strings.Builder
	sb.WriteString("🎉 *Seller Response*\n\n")
	fmt.Fprintf(&sb, "📦 *%s*\n\n", product)
	fmt.Fprintf(&sb, "💰 Price & Info: %s\n", offer)
	fmt.Fprintf(&sb, "🏪 Shop: %s\n", orDefault(seller.Shop, "N/A"))
	if seller.Location != nil && buyerLoc != nil {
		fmt.Fprintf(&sb, "📏 Distance: *%s* from you\n", geo.FormatKm(geo.Distance(*seller.Location, *buyerLoc)))
	}
	location := "N/A"
	if seller.Location != nil {
		location = geo.MapLink(*seller.Location)
	}
	fmt.Fprintf(&sb, "📍 Location: %s\n\nHappy shopping! ✨", location)
	return sb.String()
}

// BroadcastOfferText is the channel version of an offer, without distance or location.
func BroadcastOfferText(product, offer string, seller *store.Seller) string {
	return fmt.Sprintf("📦 *%s*\n\n💰 Price & Info: %s\n🏪 Shop: %s", product, offer, orDefault(seller.Shop, "N/A"))
}

// ConfirmOfferText previews the offer and asks send/edit/cancel.
func ConfirmOfferText(product, offer, shop string) string {
	var sb strings.Builder
	sb.WriteString("🚀 *Ready to Send?*\n\n")
	sb.WriteString("--- [ PREVIEW ] ---\n")
	fmt.Fprintf(&sb, "📦 *%s*\n\n", product)
	fmt.Fprintf(&sb, "💰 *Price & Info:* %s\n", offer)
	fmt.Fprintf(&sb, "🏪 *Shop:* %s\n", orDefault(shop, "N/A"))
	sb.WriteString("--- [ END PREVIEW ] ---\n\n")
	sb.WriteString("This is exactly how your offer will appear to the buyer.\n\n")
	sb.WriteString(decisionOptions)
	return sb.String()
}

const decisionOptions = "*1️⃣ Send Now* ➡️ Type `1` or `send`\n" +
	"*2️⃣ Edit Response* ➡️ Type `2` or `edit`\n" +
	"*3️⃣ Cancel* ➡️ Type `3` or `cancel`"

func progressBar(step, total int) string {
	return "Progress: " + strings.Repeat("▰", step) + strings.Repeat("▱", total-step)
}

// IntakeSummary lists the request fields for the buyer's confirmation.
func IntakeSummary(in *session.Intake) string {
	return fmt.Sprintf("📦 *Product:* %s\n🏷️ *Brand:* %s\n🔢 *Quantity:* %s\n📝 *Details:* %s\n📸 *Image:* %s\n📂 *Category:* %s",
		in.Product,
		orDefault(in.Brand, "Any"),
		orDefault(in.Quantity, "Not Specified"),
		orDefault(in.Requirements, "None"),
		provided(in.ImageID != ""),
		categoryLabel(in.Category),
	)
}

// ConfirmIntakeText is the final check before fan-out.
func ConfirmIntakeText(in *session.Intake) string {
	return "🛒 *Please confirm your request:*\n" + divider + "\n" + IntakeSummary(in) + "\n" + divider + "\n\n" +
		"*1️⃣ Confirm & Find Sellers*\n*2️⃣ Make a Change*\n*0️⃣ Go Back*\n\n" +
		"👉 Please reply with `1` or `2`. You can also type `cancel` to exit."
}

// EditMenuText lists the fields a buyer can change.
func EditMenuText(in *session.Intake) string {
	return fmt.Sprintf("*Please select what you want to edit:*\n\n"+
		"*1️⃣ Product Name:* %s\n*2️⃣ Brand:* %s\n*3️⃣ Quantity:* %s\n*4️⃣ Details:* %s\n"+
		"*5️⃣ Image:* %s\n*6️⃣ Category:* %s\n*7️⃣ Start Over*\n\n"+
		"*Type the number (1-7) of what you want to change.*",
		in.Product,
		orDefault(in.Brand, "Not specified"),
		orDefault(in.Quantity, "Not specified"),
		orDefault(in.Requirements, "Not specified"),
		provided(in.ImageID != ""),
		categoryLabel(in.Category),
	)
}

func provided(ok bool) string {
	if ok {
		return "Provided"
	}
	return "Not provided"
}

func categoryLabel(c catalog.Category) string {
	if c == "" {
		return "N/A"
	}
	return strings.ToUpper(catalog.Label(c))
}

// CategoryMenuText renders menu under a heading.
func CategoryMenuText(heading string, menu catalog.Menu) string {
	return heading + "\n\n" + menu.Render() + "\n\n➡️ *Just type the corresponding number below (e.g., 12 for Grocery).*"
}

// DashboardText is the verified seller's category management menu.
func DashboardText(s *store.Seller) string {
	var sb strings.Builder
	sb.WriteString("📊 *Seller Dashboard*\n\n")
	sb.WriteString("✅ *Status:* Verified Seller\n")
	if s.Paused {
		sb.WriteString("⏸️ *Requests:* Paused\n")
	}
	sb.WriteString("\n📚 *Your Categories:*\n")
	for _, c := range s.Categories() {
		fmt.Fprintf(&sb, "  • *%s*\n", catalog.Label(c))
	}
	sb.WriteString("\n*What would you like to do?*\n\n")
	sb.WriteString("*1️⃣ Add New Category* ➡️ Type `1`\n")
	if len(s.AdditionalCategories) > 0 {
		sb.WriteString("*2️⃣ Remove Category* ➡️ Type `2`\n")
	}
	sb.WriteString("\n💡 Type `cancel` to exit anytime.")
	return sb.String()
}

// RemoveMenuText numbers the seller's additional categories from 1.
func RemoveMenuText(s *store.Seller) string {
	var sb strings.Builder
	sb.WriteString("📂 Select a category to REMOVE from your profile:\n\n")
	for i, c := range s.AdditionalCategories {
		fmt.Fprintf(&sb, "%d. *%s* ➡️ *Type %d*\n", i+1, catalog.Label(c), i+1)
	}
	sb.WriteString("\nOr type \"cancel\" to keep all your categories.")
	return sb.String()
}

// UnderReviewText summarizes a registration awaiting verification.
func UnderReviewText(s *store.Seller) string {
	location := "Not provided"
	if s.Location != nil {
		location = "Provided"
	}
	return fmt.Sprintf("⏳ *Your registration is currently under review.*\n\n"+
		"📋 *Registration Details:*\n🏪 *Shop:* %s\n📍 *Location:* %s\n📂 *Category:* %s\n\n"+
		"✅ *Status:* Pending Admin Verification\n\n"+
		"We're reviewing your application and will notify you as soon as it's approved. 👍",
		s.Shop, location, catalog.Label(s.Category))
}

// SellerLine is one entry of the admin seller listings.
func SellerLine(s *store.Seller) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "• %s (%s)\n  Primary Category: %s", orDefault(s.Shop, "Unnamed shop"), s.Address.LocalID(), catalog.Label(s.Category))
	if len(s.AdditionalCategories) > 0 {
		sb.WriteString("\n  Additional Categories:")
		for _, c := range s.AdditionalCategories {
			fmt.Fprintf(&sb, "\n  • %s", catalog.Label(c))
		}
	}
	return sb.String()
}
