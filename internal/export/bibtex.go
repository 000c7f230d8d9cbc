// ABOUTME: BibTeX rendering of references
// ABOUTME: Keys are <first author's last name><year><first title word>, made unique within one export

package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/2389/refforge/internal/store"
)

// BibTeXKey returns the citation key for r.
func BibTeXKey(r *store.Reference) string {
	last := "anon"
	if len(r.Authors) > 0 {
		if parts := strings.Fields(r.Authors[0]); len(parts) > 0 {
			last = parts[len(parts)-1]
		}
	}

	var first string
	if words := strings.Fields(r.Title); len(words) > 0 {
		first = strings.Map(func(c rune) rune {
			if c < unicode.MaxASCII && unicode.IsLetter(c) {
				return c
			}
			return -1
		}, words[0])
	}

	return last + strconv.Itoa(r.Year) + first
}

// WriteBibTeX writes one @article entry per reference, in order.
// Colliding keys get a, b, c... suffixes.
func WriteBibTeX(w io.Writer, refs []store.Reference) error {
	seen := make(map[string]int)
	for i := range refs {
		r := &refs[i]

		key := BibTeXKey(r)
		if n := seen[key]; n > 0 {
			seen[key] = n + 1
			key += suffix(n)
		} else {
			seen[key] = 1
		}

		var b strings.Builder
		fmt.Fprintf(&b, "@article{%s,\n", key)
		fmt.Fprintf(&b, "  title = {%s},\n", r.Title)
		fmt.Fprintf(&b, "  author = {%s},\n", strings.Join(r.Authors, " and "))
		fmt.Fprintf(&b, "  year = {%d},\n", r.Year)
		if r.Journal != "" {
			fmt.Fprintf(&b, "  journal = {%s},\n", r.Journal)
		}
		if r.DOI != "" {
			fmt.Fprintf(&b, "  doi = {%s},\n", r.DOI)
		}
		if r.Abstract != "" {
			fmt.Fprintf(&b, "  abstract = {%s},\n", r.Abstract)
		}
		b.WriteString("}\n\n")

		if _, err := io.WriteString(w, b.String()); err != nil {
			return fmt.Errorf("writing bibtex entry %s: %w", r.ID, err)
		}
	}
	return nil
}

// BibTeX returns the entries as a string.
func BibTeX(refs []store.Reference) string {
	var b strings.Builder
	_ = WriteBibTeX(&b, refs)
	return b.String()
}

// suffix maps 1 -> "a", 2 -> "b", ... 26 -> "z", 27 -> "aa".
func suffix(n int) string {
	var s []byte
	for n > 0 {
		n--
		s = append([]byte{byte('a' + n%26)}, s...)
		n /= 26
	}
	return string(s)
}
