package handlers

import (
	"strings"
	"testing"
)

func TestPaymentLink(t *testing.T) {
	link := paymentLink("628123456789", "64f0c2a9e13d5b0001a2b3c4")

	if !strings.HasPrefix(link, "https://wa.me/628123456789?text=") {
		t.Fatalf("unexpected link prefix: %s", link)
	}
	if !strings.Contains(link, "64f0c2a9e13d5b0001a2b3c4") {
		t.Fatalf("link must carry the order id: %s", link)
	}
	if strings.Contains(link, " ") {
		t.Fatalf("message must be query-escaped: %s", link)
	}
}
