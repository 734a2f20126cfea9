package section

import (
	"fmt"
	"strings"
	"testing"
)

// filler generates n words of body text.
func filler(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(words, " ")
}

func TestLocate_BusinessDescription(t *testing.T) {
	payload := "PART I\n\nItem 1. Business\n\n" + filler(150) + "\n\nItem 2. Properties\n\nWe lease offices.\n"
	res := Locate(payload, BusinessDescription)
	if !res.Found {
		t.Fatal("expected section to be found")
	}
	if !strings.Contains(res.Text, "word0") || !strings.Contains(res.Text, "word149") {
		t.Errorf("body incomplete: %.80s...", res.Text)
	}
	if strings.Contains(res.Text, "Properties") {
		t.Errorf("next item heading leaked into body")
	}
	if strings.Contains(res.Text, "We lease offices") {
		t.Errorf("content past end boundary leaked")
	}
}

func TestLocate_WordFloor(t *testing.T) {
	payload := "Item 1. Business\n\nshort body only\n\nItem 2. Properties\n"
	res := Locate(payload, BusinessDescription)
	if res.Found {
		t.Fatal("sub-100-word candidate must be rejected")
	}
}

func TestLocate_SpelledOutOrdinals(t *testing.T) {
	payload := "ITEM ONE. BUSINESS\n\n" + filler(120) + "\n\nITEM TWO. PROPERTIES\n"
	res := Locate(payload, BusinessDescription)
	if !res.Found {
		t.Fatal("spelled-out ordinal headings must normalize and match")
	}
}

func TestLocate_RomanNumerals(t *testing.T) {
	payload := "ITEM I - BUSINESS\n\n" + filler(120) + "\n\nITEM II - PROPERTIES\n"
	res := Locate(payload, BusinessDescription)
	if !res.Found {
		t.Fatal("Roman numeral headings must normalize and match")
	}
}

func TestLocate_WrappedHeadingTitleMerged(t *testing.T) {
	payload := "Item 1\nBusiness\n\n" + filler(120) + "\n\nItem 2\nProperties\n"
	res := Locate(payload, BusinessDescription)
	if !res.Found {
		t.Fatal("wrapped heading titles must merge onto the item line")
	}
}

func TestLocate_DescriptionOfBusinessVariant(t *testing.T) {
	payload := "Item 1. Description of Business\n\n" + filler(120) + "\n\nItem 2. Real Estate\n"
	res := Locate(payload, BusinessDescription)
	if !res.Found {
		t.Fatal("variant heading pair must match")
	}
}

func TestLocate_CombinedItemsFallback(t *testing.T) {
	payload := "Item 1 and 2. Business and Properties\n\n" + filler(130) + "\n\nItem 3. Legal Proceedings\n"
	res := Locate(payload, BusinessDescription)
	if !res.Found {
		t.Fatal("combined-items fallback pair must match")
	}
}

func TestLocate_TableOfContentsTieBreak(t *testing.T) {
	// A duplicated table of contents produces an early short start/end
	// pair; with equal counts the locator must keep the longest
	// candidate, the real section.
	payload := "INDEX\nItem 1. Business ........ 3\nItem 2. Properties ...... 9\n\n" +
		"Item 1. Business\n\n" + filler(200) + "\n\nItem 2. Properties\noffices\n"
	res := Locate(payload, BusinessDescription)
	if !res.Found {
		t.Fatal("expected real section despite duplicated TOC")
	}
	if !strings.Contains(res.Text, "word199") {
		t.Errorf("tie-break did not keep the longest candidate")
	}
}

func TestLocate_UnequalCountsUsesLastMatches(t *testing.T) {
	// Two starts (TOC + real) but only one end: last start and last end
	// are used.
	payload := "Item 1. Business ... 3\n\nItem 1. Business\n\n" + filler(150) + "\n\nItem 2. Properties\n"
	res := Locate(payload, BusinessDescription)
	if !res.Found {
		t.Fatal("expected section with unequal boundary counts")
	}
	if strings.Contains(res.Text, "... 3") {
		t.Errorf("body started at the TOC line instead of the last start match")
	}
}

func TestLocate_DiscussionAndAnalysis(t *testing.T) {
	payload := "Item 7. Management's Discussion and Analysis of Financial Condition\n\n" +
		filler(150) + "\n\nItem 8. Financial Statements and Supplementary Data\n"
	res := Locate(payload, DiscussionAndAnalysis)
	if !res.Found {
		t.Fatal("expected MD&A section to be found")
	}
	if strings.Contains(res.Text, "Supplementary Data") {
		t.Errorf("end heading leaked into MD&A body")
	}
}

func TestLocate_MdaEndsAtItem7A(t *testing.T) {
	payload := "Item 7. Management's Discussion and Analysis\n\n" + filler(150) +
		"\n\nItem 7A. Quantitative and Qualitative Disclosures About Market Risk\nrisk text\n"
	res := Locate(payload, DiscussionAndAnalysis)
	if !res.Found {
		t.Fatal("expected MD&A section")
	}
	if strings.Contains(res.Text, "risk text") {
		t.Errorf("content past Item 7A leaked into MD&A body")
	}
}

func TestLocate_NotFound(t *testing.T) {
	res := Locate("This filing has no recognizable item headings at all.\n"+filler(200), BusinessDescription)
	if res.Found {
		t.Fatal("expected found=false on heading-free payload")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"items to item", "Items 1. Business", "Item 1 Business"},
		{"apostrophe deleted", "Item 7. Management's Discussion", "Item 7 Managements Discussion"},
		{"ordinal", "Item One Business", "Item 1 Business"},
		{"roman", "Item III Legal", "Item 3 Legal"},
		{"blank lines dropped", "a\n\n\nb", "a\nb"},
		{"whitespace collapsed", "Item  1.    Business", "Item 1 Business"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
