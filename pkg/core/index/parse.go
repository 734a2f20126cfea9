// Package index builds and caches catalogs of available EDGAR filings
// from the SEC master index files.
package index

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"edgarbulk/pkg/models"
)

// Master index banner ends at a separator line of dashes.
const bannerSeparator = "-----"

// asciiTransform strips diacritics and anything outside 7-bit ASCII.
// Index files mix encodings across decades; downstream consumers assume
// a 7-bit-safe character set.
var asciiTransform = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// ToASCII transliterates s to 7-bit ASCII.
func ToASCII(s string) string {
	out, _, err := transform.String(asciiTransform, s)
	if err != nil {
		// Fall back to dropping offending runes byte by byte.
		var b strings.Builder
		for _, r := range s {
			if r <= unicode.MaxASCII {
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	return out
}

// namePunct strips punctuation that litters company names in old index
// files. The pipe is removed everywhere since it is the field delimiter.
var namePunct = strings.NewReplacer(
	",", "", ".", "", ";", "", ":", "", "!", "", "?", "",
	"'", "", "\"", "", "`", "", "\\", "",
)

// cleanCompanyName normalizes a company name field: ASCII, no field
// delimiter, no punctuation, collapsed whitespace.
func cleanCompanyName(s string) string {
	s = ToASCII(s)
	s = strings.ReplaceAll(s, "|", " ")
	s = namePunct.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// ParseMaster parses the decompressed body of a master index file into
// IndexRecords. The banner header is skipped up to and including the dash
// separator line; every following line is a 5-field pipe-delimited record
// (cik|company|form|date|edgar_link). Malformed lines are skipped, never
// fatal. Records keep the original line order; duplicates are preserved.
func ParseMaster(r io.Reader, year, quarter int) ([]models.IndexRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	records := make([]models.IndexRecord, 0, 4096)
	inBody := false
	for scanner.Scan() {
		line := scanner.Text()
		if !inBody {
			if strings.HasPrefix(line, bannerSeparator) {
				inBody = true
			}
			continue
		}

		rec, ok := parseLine(line, year, quarter)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan index body: %w", err)
	}
	if !inBody {
		return nil, fmt.Errorf("no banner separator found in index file")
	}
	return records, nil
}

func parseLine(line string, year, quarter int) (models.IndexRecord, bool) {
	line = ToASCII(line)
	fields := strings.Split(line, "|")
	if len(fields) != 5 {
		return models.IndexRecord{}, false
	}

	cik, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return models.IndexRecord{}, false
	}

	rec := models.IndexRecord{
		CIK:         cik,
		CompanyName: cleanCompanyName(fields[1]),
		FormType:    strings.TrimSpace(fields[2]),
		DateFiled:   strings.TrimSpace(fields[3]),
		EdgarLink:   strings.TrimSpace(fields[4]),
		Quarter:     quarter,
		FilingYear:  year,
	}
	if rec.EdgarLink == "" || rec.FormType == "" {
		return models.IndexRecord{}, false
	}
	return rec, true
}
