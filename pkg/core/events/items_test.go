package events

import "testing"

func TestExtract_KnownItems(t *testing.T) {
	payload := `UNITED STATES SECURITIES AND EXCHANGE COMMISSION
FORM 8-K

Item 5.02 Departure of Directors or Certain Officers.
On June 1 the registrant announced the resignation of its CFO.

Item 9.01 Financial Statements and Exhibits.
(d) Exhibits.`

	items := Extract(payload)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Code != "5.02" {
		t.Errorf("first code = %q", items[0].Code)
	}
	if items[1].Code != "9.01" || items[1].Description != "Financial Statements and Exhibits" {
		t.Errorf("second item = %+v", items[1])
	}
}

func TestExtract_UnknownCodePassesThrough(t *testing.T) {
	items := Extract("Item 12.34 Something Novel.")
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Code != "12.34" || items[0].Description != placeholderDescription {
		t.Errorf("unknown code handling wrong: %+v", items[0])
	}
}

func TestExtract_DeduplicatesRepeatedCodes(t *testing.T) {
	payload := "Item 2.02 Results of Operations.\nsome text\nItem 2.02 Results of Operations."
	items := Extract(payload)
	if len(items) != 1 {
		t.Fatalf("expected 1 distinct item, got %d", len(items))
	}
}

func TestExtract_NoItems(t *testing.T) {
	if items := Extract("no disclosed events here"); items != nil {
		t.Fatalf("expected nil, got %+v", items)
	}
}
