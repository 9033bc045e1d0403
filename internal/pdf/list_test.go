package pdf_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mpdgrab/internal/pdf"
)

func TestParseList(t *testing.T) {
	input := `
# weekly notes
Polity Notes:https://cdn.example/polity.pdf
https://cdn.example/plain.pdf
  Economy : https://cdn.example/eco.pdf?sig=1
no url here
`
	items, err := pdf.ParseList(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	want := []pdf.Item{
		{Name: "Polity Notes", URL: "https://cdn.example/polity.pdf"},
		{URL: "https://cdn.example/plain.pdf"},
		{Name: "Economy", URL: "https://cdn.example/eco.pdf?sig=1"},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}
