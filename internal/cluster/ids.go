package cluster

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/v1gneshkum4r21/face-clustering/internal/constants"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

const maxNameLen = 128

// FormatID returns the generated identifier for sequence number n.
func FormatID(n int) string {
	return constants.ClusterIDPrefix + strconv.Itoa(n)
}

// ParseID extracts the sequence number of a generated identifier
// (e.g. "cluster_12" -> 12). Custom names report ok=false.
func ParseID(id string) (int, bool) {
	rest, found := strings.CutPrefix(id, constants.ClusterIDPrefix)
	if !found || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}

// CompareIDs orders generated identifiers by sequence number, ahead of
// custom names, which sort lexically.
func CompareIDs(a, b string) int {
	na, okA := ParseID(a)
	nb, okB := ParseID(b)
	switch {
	case okA && okB:
		return na - nb
	case okA:
		return -1
	case okB:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SortIDs sorts identifiers in place using CompareIDs.
func SortIDs(ids []string) {
	slices.SortFunc(ids, CompareIDs)
}

// removeDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName turns a user supplied cluster name into a directory-safe
// identifier: diacritics stripped, whitespace collapsed to underscores.
func NormalizeName(name string) (string, error) {
	name = removeDiacritics(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), "_")
	if len(name) > maxNameLen || !validName.MatchString(name) {
		return "", ErrInvalidName
	}
	return name, nil
}
