package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ReviewMarker is the title phrase that identifies an album review.
const ReviewMarker = "album review"

var (
	folder              = cases.Fold()
	reviewMarkerPattern = regexp.MustCompile(`(?i)\balbum\s+review\b`)
)

// Fold returns s NFKC-normalized and case-folded for comparison.
func Fold(s string) string {
	return folder.String(norm.NFKC.String(s))
}

// ContainsFold reports whether substr occurs in s ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(Fold(s), Fold(substr))
}

// SearchKey derives a catalog search query from a review title by removing
// the review marker and collapsing whitespace.
// "Radiohead - OK Computer ALBUM REVIEW" yields "Radiohead - OK Computer".
func SearchKey(title string) string {
	title = norm.NFKC.String(title)
	title = reviewMarkerPattern.ReplaceAllString(title, " ")
	return strings.Join(strings.FieldsFunc(title, unicode.IsSpace), " ")
}
