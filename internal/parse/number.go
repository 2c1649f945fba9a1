package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe = regexp.MustCompile(`^([A-Z])\s*[-#]*\s*(\d+)$`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// ParsedNumber holds the parts of a ticket number such as "P007".
type ParsedNumber struct {
	Prefix string
	Seq    uint64
}

// FormatNumber renders a ticket number: the prefix followed by seq zero-padded
// to width digits. Values wider than width are rendered in full.
func FormatNumber(prefix string, seq uint64, width int) string {
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%s%0*d", prefix, width, seq)
}

// ParseNumber extracts the prefix letter and the counter value from a ticket
// number typed or scanned by a customer. Case, surrounding blanks and a
// separating "-" or "#" are tolerated, so "g-7", " G#007 " and "G007" all
// parse to {G 7}.
func ParseNumber(raw string) (ParsedNumber, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = spaceRe.ReplaceAllString(s, " ")

	m := numberRe.FindStringSubmatch(s)
	if m == nil {
		return ParsedNumber{}, fmt.Errorf("unable to parse ticket number: %q", raw)
	}

	seq, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return ParsedNumber{}, fmt.Errorf("ticket number %q out of range: %w", raw, err)
	}
	if seq == 0 {
		return ParsedNumber{}, fmt.Errorf("ticket number %q has a zero sequence", raw)
	}

	return ParsedNumber{Prefix: m[1], Seq: seq}, nil
}
