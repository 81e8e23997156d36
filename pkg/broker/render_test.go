package broker

import (
	"strings"
	"testing"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/geo"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

func TestFormatOffer(t *testing.T) {
	cases := map[string]string{
		"150rs available":         "*150rs* available",
		"Rs. 1,200 in stock":      "*Rs. 1,200* in stock",
		"₹500/- only":             "*₹500/-* only",
		"available in 2 Litres":   "available in *2* Litres",
		"price 2.5k, delivery ok": "price *2.5k*, delivery ok",
		"out of stock":            "out of stock",
		"  $40  ":                 "*$40*",
	}
	for in, want := range cases {
		if got := FormatOffer(in); got != want {
			t.Fatalf("FormatOffer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStructureRequirements(t *testing.T) {
	if got := StructureRequirements("under 500"); got != "under 500" {
		t.Fatalf("single line changed: %q", got)
	}
	got := StructureRequirements("- red\n\n* 5 year warranty\n")
	if got != "• red\n• 5 year warranty" {
		t.Fatalf("bullets = %q", got)
	}
}

func TestQuotedRequestParsing(t *testing.T) {
	p := store.Payload{Product: "LED Bulb", Brand: "Syska", Quantity: "4"}
	text := SellerRequestText(p, bus.Address("919876@telegram"))

	if !HasRequestMarker(text) {
		t.Fatal("request text should carry a marker")
	}
	if got := QuotedBuyerID(text); got != "919876" {
		t.Fatalf("buyer id = %q", got)
	}
	if got := QuotedProduct(text); got != "LED Bulb" {
		t.Fatalf("product = %q", got)
	}

	broadcast := BroadcastRequestText(p)
	if QuotedBuyerID(broadcast) != "" {
		t.Fatal("broadcast must not carry a buyer id")
	}
	if HasRequestMarker("see you tomorrow") {
		t.Fatal("plain chat is not a request")
	}
}

func TestBuyerOfferTextDistance(t *testing.T) {
	shop := geo.Point{Lat: 13.0827, Lon: 80.2707}
	seller := &store.Seller{Shop: "Volt House", Location: &shop}
	buyerLoc := geo.Point{Lat: 13.0674, Lon: 80.2376}

	withBoth := BuyerOfferText("LED Bulb", "*150*", seller, &buyerLoc)
	if !strings.Contains(withBoth, "Distance:") || !strings.Contains(withBoth, geo.MapLink(shop)) {
		t.Fatalf("missing distance or map link:\n%s", withBoth)
	}

	noBuyer := BuyerOfferText("LED Bulb", "*150*", seller, nil)
	if strings.Contains(noBuyer, "Distance:") {
		t.Fatal("distance needs the buyer location")
	}

	noShop := BuyerOfferText("LED Bulb", "*150*", &store.Seller{Shop: "Volt House"}, &buyerLoc)
	if strings.Contains(noShop, "Distance:") || !strings.Contains(noShop, "Location: N/A") {
		t.Fatalf("seller without location:\n%s", noShop)
	}

	broadcast := BroadcastOfferText("LED Bulb", "*150*", seller)
	if strings.Contains(broadcast, "maps") || strings.Contains(broadcast, "Distance") {
		t.Fatal("broadcast offer must omit location details")
	}
}
