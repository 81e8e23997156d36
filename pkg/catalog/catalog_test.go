package catalog

import (
	"strings"
	"testing"
)

func TestMenuParse(t *testing.T) {
	cases := []struct {
		menu  Menu
		input string
		want  Category
		ok    bool
	}{
		{SellerMenu, "12", Grocery, true},
		{SellerMenu, " 1️⃣2️⃣ ", Grocery, true},
		{SellerMenu, "🔟", Mobiles, true},
		{SellerMenu, "17", Supermarket, true},
		{BuyerMenu, "17", "", false},
		{BuyerMenu, "15", Electricals, true},
		{SellerMenu, "2", "", false},
		{SellerMenu, "grocery", "", false},
		{SellerMenu, "", "", false},
	}
	for _, tc := range cases {
		got, ok := tc.menu.Parse(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Parse(%q) = %q,%v want %q,%v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBuyerMenuOmitsSupermarket(t *testing.T) {
	for _, c := range BuyerMenu.Options() {
		if c == Supermarket {
			t.Fatal("buyer menu must not offer supermarket")
		}
	}
	if len(SellerMenu.Options()) != len(BuyerMenu.Options())+1 {
		t.Fatalf("seller menu should offer exactly one more option")
	}
	if strings.Contains(BuyerMenu.Render(), "Supermarket") {
		t.Fatal("rendered buyer menu mentions supermarket")
	}
}

func TestGroupFallback(t *testing.T) {
	if Group(Electronics) != Electricals {
		t.Fatalf("electronics should share the electricals channel")
	}
	if Group(Grocery) != Houseware {
		t.Fatalf("grocery should share the houseware channel")
	}
	if Group(FancyGifts) != FancyGifts {
		t.Fatalf("fancy gifts has its own channel")
	}
}

func TestEmojiNumberRoundTrip(t *testing.T) {
	for _, c := range All() {
		n, ok := ParseNumber(EmojiNumber(Number(c)))
		if !ok || n != Number(c) {
			t.Fatalf("round trip of %s failed: %d %v", c, n, ok)
		}
	}
}

func TestValid(t *testing.T) {
	if Valid(Unknown) {
		t.Fatal("unknown must not be a valid category")
	}
	if !Valid(Battery) {
		t.Fatal("battery_products should be valid")
	}
}
