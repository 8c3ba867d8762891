package pii

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Mapping is an injective placeholder→original mapping scoped to a single
// in-flight request of one session.
type Mapping map[string]string

// Clone returns a shallow copy of the mapping.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PlaceholderPattern matches the placeholder token grammar
// [CATEGORY_<opaque-id>]. The namespaced bracket format makes accidental
// collisions with natural text unlikely; Mask additionally verifies each
// generated token against both the mapping and the source text.
var PlaceholderPattern = regexp.MustCompile(`\[[A-Z_]+_[0-9a-f]{8}\]`)

// Codec substitutes detected spans with reversible placeholder tokens and
// reverses the substitution later using a mapping.
type Codec struct {
	newID func() string
}

// CodecOptions configure a Codec.
type CodecOptions struct {
	// NewID generates opaque placeholder suffixes. Defaults to 8-hex-char
	// random ids; override for deterministic tests.
	NewID func() string
}

// NewCodec creates a Codec.
func NewCodec(optFns ...func(o *CodecOptions)) *Codec {
	opts := CodecOptions{
		NewID: func() string { return uuid.NewString()[:8] },
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Codec{newID: opts.NewID}
}

// Mask replaces every resolved span with a freshly generated placeholder and
// returns the masked text plus the placeholder→original mapping. Overlapping
// spans are resolved by precedence: the longer span wins; on equal length the
// span with the smaller start offset wins.
func (c *Codec) Mask(text string, spans []Span) (string, Mapping) {
	mapping := make(Mapping)
	selected := selectSpans(spans, len(text))
	if len(selected) == 0 {
		return text, mapping
	}

	placeholders := make([]string, len(selected))
	for i, span := range selected {
		placeholders[i] = c.placeholderFor(span.Category, text, mapping)
		mapping[placeholders[i]] = span.Value
	}

	// Rewrite back-to-front so earlier offsets stay valid.
	masked := text
	for i := len(selected) - 1; i >= 0; i-- {
		masked = masked[:selected[i].Start] + placeholders[i] + masked[selected[i].End:]
	}
	return masked, mapping
}

// Unmask substitutes every placeholder token present in text back to its
// original value. Placeholders absent from the mapping (or placeholders the
// downstream handler dropped or truncated) are left verbatim; this never
// fails.
func (c *Codec) Unmask(text string, mapping Mapping) string {
	if len(mapping) == 0 {
		return text
	}
	for placeholder, original := range mapping {
		text = strings.ReplaceAll(text, placeholder, original)
	}
	return text
}

// placeholderFor generates a unique placeholder token for the category,
// retrying on the (unlikely) event of a collision with the mapping or with a
// substring occurring naturally in the text.
func (c *Codec) placeholderFor(cat Category, text string, mapping Mapping) string {
	tag := strings.ToUpper(strings.ReplaceAll(string(cat), " ", "_"))
	for {
		placeholder := fmt.Sprintf("[%s_%s]", tag, c.newID())
		if _, taken := mapping[placeholder]; taken {
			continue
		}
		if strings.Contains(text, placeholder) {
			continue
		}
		return placeholder
	}
}

// selectSpans drops invalid spans and resolves overlaps. Spans reaching
// beyond the text are dropped rather than clamped; a detector reporting an
// offset past the end is reporting a value the text does not contain. The
// surviving spans are returned sorted by start offset.
func selectSpans(spans []Span, limit int) []Span {
	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start >= 0 && s.End > s.Start && s.End <= limit {
			valid = append(valid, s)
		}
	}

	// Precedence order: longer first, then earlier offset.
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Len() != valid[j].Len() {
			return valid[i].Len() > valid[j].Len()
		}
		return valid[i].Start < valid[j].Start
	})

	var selected []Span
	for _, cand := range valid {
		overlaps := false
		for _, s := range selected {
			if cand.Start < s.End && s.Start < cand.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			selected = append(selected, cand)
		}
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].Start < selected[j].Start })
	return selected
}
