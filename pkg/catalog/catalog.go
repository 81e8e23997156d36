// Package catalog defines the fixed product category set, the numbered menus
// used to pick from it, and the broadcast group each category falls back to.
package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

type Category string

const (
	Unknown Category = "unknown"

	Pharmaceuticals Category = "pharmaceuticals_health"
	Houseware       Category = "houseware"
	Ayurveda        Category = "ayurveda_siddha"
	Computers       Category = "computers_computer_accessories"
	Automobile      Category = "automobile_spares"
	Battery         Category = "battery_products"
	Sports          Category = "sports_equipment"
	Mobiles         Category = "mobiles_mobile_accessories"
	Hardware        Category = "hardware_construction"
	Grocery         Category = "grocery"
	Stationary      Category = "stationary_office"
	FancyGifts      Category = "fancy_gifts_toys"
	Electricals     Category = "electricals"
	Electronics     Category = "electronics"
	Supermarket     Category = "supermarket"
)

type entry struct {
	number      int
	category    Category
	label       string
	description string
}

// Menu numbers start at 3; 1 and 2 are reserved for dialogue choices.
var entries = []entry{
	{3, Pharmaceuticals, "Pharmaceuticals & Health", "Medicines, health supplements, medical equipment"},
	{4, Houseware, "Houseware", "Home decor, kitchenware, furniture"},
	{5, Ayurveda, "Ayurveda & Siddha", "Ayurvedic medicines, herbs, traditional remedies"},
	{6, Computers, "Computers & Computer Accessories", "Laptops, desktops, printers, keyboards, mice"},
	{7, Automobile, "Automobile Spares", "Car parts, bike parts, vehicle accessories"},
	{8, Battery, "Battery Products", "All types of batteries, power banks, UPS"},
	{9, Sports, "Sports Equipment", "Sports gear, fitness equipment, outdoor activities"},
	{10, Mobiles, "Mobiles & Mobile Accessories", "Phone cases, chargers, headphones, screen protectors"},
	{11, Hardware, "Hardware & Construction", "Building materials, tools, paints, plumbing supplies"},
	{12, Grocery, "Grocery", "Food items, household supplies"},
	{13, Stationary, "Stationary & Office Supplies", "Office supplies, school supplies"},
	{14, FancyGifts, "Fancy, Gifts & Toys", "Gift items, decorative items, toys, novelty products"},
	{15, Electricals, "Electricals", "Electrical equipment, wiring, switches, electrical tools"},
	{16, Electronics, "Electronics", "Electronic devices, gadgets, appliances"},
	{17, Supermarket, "Supermarket", "General stores carrying a bit of everything"},
}

// groups maps a category to the category whose broadcast channel it shares
// when it has none of its own.
var groups = map[Category]Category{
	Electronics: Electricals,
	Computers:   Electricals,
	Automobile:  Electricals,
	Battery:     Electricals,
	Mobiles:     Electricals,
	Hardware:    Electricals,
	Ayurveda:    Pharmaceuticals,
	Sports:      Houseware,
	Grocery:     Houseware,
	Stationary:  Houseware,
}

// All returns every category in menu order.
func All() []Category {
	out := make([]Category, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.category)
	}
	return out
}

// Valid reports whether c is part of the fixed set. Unknown is not.
func Valid(c Category) bool {
	_, ok := lookup(c)
	return ok
}

func lookup(c Category) (entry, bool) {
	for _, e := range entries {
		if e.category == c {
			return e, true
		}
	}
	return entry{}, false
}

// Label returns the human-readable name, falling back to the slug.
func Label(c Category) string {
	if e, ok := lookup(c); ok {
		return e.label
	}
	return string(c)
}

// Description returns the short description used in classifier prompts.
func Description(c Category) string {
	if e, ok := lookup(c); ok {
		return e.description
	}
	return ""
}

// Number returns the menu number of c, or 0.
func Number(c Category) int {
	if e, ok := lookup(c); ok {
		return e.number
	}
	return 0
}

// Group returns the category whose broadcast channel c falls back to.
func Group(c Category) Category {
	if g, ok := groups[c]; ok {
		return g
	}
	return c
}

// Menu selects which categories a numbered menu offers.
type Menu int

const (
	// SellerMenu offers every category.
	SellerMenu Menu = iota
	// BuyerMenu omits supermarket; supermarket sellers receive every request anyway.
	BuyerMenu
)

func (m Menu) allows(c Category) bool {
	return m == SellerMenu || c != Supermarket
}

// Options returns the categories m offers, in menu order.
func (m Menu) Options() []Category {
	var out []Category
	for _, e := range entries {
		if m.allows(e.category) {
			out = append(out, e.category)
		}
	}
	return out
}

// Render formats the menu body as numbered lines.
func (m Menu) Render() string {
	var sb strings.Builder
	for _, c := range m.Options() {
		fmt.Fprintf(&sb, "%s *%s*\n", EmojiNumber(Number(c)), Label(c))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Parse resolves a menu reply ("12", "1️⃣2️⃣", "🔟") to a category.
func (m Menu) Parse(input string) (Category, bool) {
	n, ok := ParseNumber(input)
	if !ok {
		return "", false
	}
	for _, e := range entries {
		if e.number == n && m.allows(e.category) {
			return e.category, true
		}
	}
	return "", false
}

var keycapDigits = map[string]string{
	"0️⃣": "0", "1️⃣": "1", "2️⃣": "2", "3️⃣": "3", "4️⃣": "4",
	"5️⃣": "5", "6️⃣": "6", "7️⃣": "7", "8️⃣": "8", "9️⃣": "9",
	"🔟": "10",
}

// ParseNumber reads a menu number written with ASCII or keycap emoji digits.
func ParseNumber(input string) (int, bool) {
	s := strings.TrimSpace(input)
	for emoji, digit := range keycapDigits {
		s = strings.ReplaceAll(s, emoji, digit)
	}
	// Bare keycap combiner left over from partially typed emoji.
	s = strings.ReplaceAll(s, "⃣", "")
	s = strings.ReplaceAll(s, "️", "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// EmojiNumber renders n with keycap digits, using 🔟 for ten.
func EmojiNumber(n int) string {
	if n == 10 {
		return "🔟"
	}
	var sb strings.Builder
	for _, r := range strconv.Itoa(n) {
		sb.WriteRune(r)
		sb.WriteString("️⃣")
	}
	return sb.String()
}
