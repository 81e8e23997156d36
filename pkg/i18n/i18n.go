// Package i18n holds the translated broker messages. Keys missing from a
// language fall back to English, and keys missing from English render as the
// key itself so a gap is visible in the chat instead of an empty message.
package i18n

import (
	"fmt"
	"strings"
)

type Lang string

const (
	English Lang = "en"
	Tamil   Lang = "ta"
)

// ParseLang maps a stored preference to a language, defaulting to English.
func ParseLang(code string) Lang {
	if Lang(strings.ToLower(strings.TrimSpace(code))) == Tamil {
		return Tamil
	}
	return English
}

// FromMenu maps the language menu digits.
func FromMenu(input string) (Lang, bool) {
	switch strings.TrimSpace(input) {
	case "1":
		return English, true
	case "2":
		return Tamil, true
	}
	return "", false
}

const (
	KeyLanguageMenu   = "language_menu"
	KeyLanguageSet    = "language_set"
	KeyWelcome        = "welcome"
	KeyAskProduct     = "ask_product"
	KeyNoSellers      = "no_sellers"
	KeyOnIt           = "on_it"
	KeyHelpHint       = "help_hint"
	KeyCancelled      = "cancelled"
	KeyNothingToStop  = "nothing_to_cancel"
	KeyFlowActive     = "flow_active"
	KeyProcessing     = "request_processing"
	KeyApology        = "apology"
	KeyStartHint      = "start_hint"
	KeySellersOnly    = "sellers_only"
	KeyPaused         = "paused"
	KeyResumed        = "resumed"
	KeyAdminOnly      = "admin_only"
	KeyThankYou       = "thank_you"
	KeyOfferDelivered = "offer_delivered"
)

var messages = map[Lang]map[string]string{
	English: {
		KeyLanguageMenu:   "🌐 *Language / மொழி*\n\n*1️⃣ English* ➡️ *Type 1*\n*2️⃣ தமிழ் (Tamil)* ➡️ *Type 2*\n\n*Please select your preferred language:*",
		KeyLanguageSet:    "✅ Language set to English.",
		KeyWelcome:        "⚡️ Welcome to *Bizz Bazzar*!",
		KeyAskProduct:     "👉 *Ready to start?*\n\n*Just type the NAME OF THE PRODUCT you're looking for!*\n\n(For example: *Figaro Olive Oil* or *Syska LED Bulb*)",
		KeyNoSellers:      "❌ No verified sellers available in the %s category yet. Please try again later.\n\nType *\"start\"* to begin a new search in a different category.",
		KeyOnIt:           "⚡️ *On it!*\nI'm sending your request to verified local sellers right now.\nYou'll get a message here as soon as they respond!\n\nSit back and relax! ☕️",
		KeyHelpHint:       "💬 If you get stuck or have any questions, just type `help`.",
		KeyCancelled:      "✅ Your current process has been cancelled. You can start a new request or join as a seller.",
		KeyNothingToStop:  "❓ You don't have any active process to cancel.",
		KeyFlowActive:     "⚠️ You have an active process. Please type *\"cancel\"* to exit your current process first, or complete it.",
		KeyProcessing:     "✅ *Your order request has been sent and is being processed!*\n\n⏳ Please wait for sellers to respond to your request.\n\n🔄 If you want to place a new order, type *\"start\"* (your previous order will still be processed).",
		KeyApology:        "❌ An unexpected error occurred. Please try again or type \"help\".",
		KeyStartHint:      "👋 Type *\"start\"* to search for a product, or *\"join seller\"* to list your shop.",
		KeySellersOnly:    "❓ This command is only available for verified sellers.",
		KeyPaused:         "⏸️ *You are now paused.*\n\nYou will not receive any new buyer requests until you resume.\n\nType *\"resume\"* when you want to start receiving requests again.",
		KeyResumed:        "▶️ *You are now active!*\n\nYou will start receiving new buyer requests again.",
		KeyAdminOnly:      "⛔ This command is only available to administrators.",
		KeyThankYou:       "Thank you for using our service!",
		KeyOfferDelivered: "✅ Your response has been sent to the buyer and group! You have %d more request(s) pending.",
	},
	Tamil: {
		KeyLanguageSet:   "✅ மொழி தமிழாக அமைக்கப்பட்டது.",
		KeyWelcome:       "⚡️ *Bizz Bazzar* வரவேற்கிறோம்!",
		KeyAskProduct:    "👉 *தொடங்கலாமா?*\n\nநீங்கள் தேடும் *தயாரிப்பின் பெயரை* தட்டச்சு செய்யவும்!\n\n(உதாரணம்: *Figaro Olive Oil* அல்லது *Syska LED Bulb*)",
		KeyNoSellers:     "❌ %s வகையில் சரிபார்க்கப்பட்ட விற்பனையாளர்கள் இன்னும் இல்லை. பிறகு முயற்சிக்கவும்.\n\nவேறு வகையில் தேட *\"start\"* என தட்டச்சு செய்யவும்.",
		KeyOnIt:          "⚡️ *தேடுகிறோம்!*\nஉங்கள் கோரிக்கை அருகிலுள்ள விற்பனையாளர்களுக்கு அனுப்பப்படுகிறது.\nஅவர்கள் பதிலளித்தவுடன் இங்கே செய்தி வரும்!",
		KeyHelpHint:      "💬 உதவிக்கு `help` என தட்டச்சு செய்யவும்.",
		KeyCancelled:     "✅ உங்கள் தற்போதைய செயல்முறை ரத்து செய்யப்பட்டது.",
		KeyNothingToStop: "❓ ரத்து செய்ய எந்த செயல்முறையும் இல்லை.",
		KeyFlowActive:    "⚠️ ஒரு செயல்முறை நடைபெற்று வருகிறது. முதலில் *\"cancel\"* என தட்டச்சு செய்யவும் அல்லது அதை முடிக்கவும்.",
		KeyProcessing:    "✅ *உங்கள் கோரிக்கை அனுப்பப்பட்டது!*\n\n⏳ விற்பனையாளர்களின் பதிலுக்காக காத்திருக்கவும்.\n\n🔄 புதிய கோரிக்கைக்கு *\"start\"* என தட்டச்சு செய்யவும்.",
		KeyApology:       "❌ எதிர்பாராத பிழை ஏற்பட்டது. மீண்டும் முயற்சிக்கவும் அல்லது \"help\" என தட்டச்சு செய்யவும்.",
		KeyStartHint:     "👋 தயாரிப்பைத் தேட *\"start\"* அல்லது கடையை பதிவு செய்ய *\"join seller\"* என தட்டச்சு செய்யவும்.",
		KeyThankYou:      "எங்கள் சேவையைப் பயன்படுத்தியதற்கு நன்றி!",
	},
}

// T returns the message for key in lang.
func T(lang Lang, key string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := messages[English][key]; ok {
		return s
	}
	return key
}

// Tf formats the message for key in lang with args.
func Tf(lang Lang, key string, args ...interface{}) string {
	return fmt.Sprintf(T(lang, key), args...)
}
