package pii

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// deterministicCodec numbers placeholder ids sequentially so tests can assert
// exact masked output.
func deterministicCodec() *Codec {
	n := 0
	return NewCodec(func(o *CodecOptions) {
		o.NewID = func() string {
			n++
			return fmt.Sprintf("%08x", n)
		}
	})
}

func TestMaskAndUnmask(t *testing.T) {
	c := deterministicCodec()
	text := "Hi I am John Doe. My SSN is 123-45-6789."
	spans := []Span{
		{Category: CategoryName, Value: "John Doe", Start: 8, End: 16},
		{Category: CategorySSN, Value: "123-45-6789", Start: 28, End: 39},
	}

	masked, mapping := c.Mask(text, spans)
	assert.Equal(t, "Hi I am [NAME_00000001]. My SSN is [SSN_00000002].", masked)
	require.Len(t, mapping, 2)
	assert.Equal(t, "John Doe", mapping["[NAME_00000001]"])
	assert.Equal(t, "123-45-6789", mapping["[SSN_00000002]"])

	assert.Equal(t, text, c.Unmask(masked, mapping))
}

func TestMaskNoSpans(t *testing.T) {
	c := NewCodec()
	masked, mapping := c.Mask("nothing sensitive here", nil)
	assert.Equal(t, "nothing sensitive here", masked)
	assert.Empty(t, mapping)
}

func TestMaskOverlapLongerWins(t *testing.T) {
	c := deterministicCodec()
	//                          0123456789
	text := "xxaaaaaaaaaayy"
	spans := []Span{
		{Category: CategoryOther, Value: "aaaaa", Start: 2, End: 7},
		{Category: CategoryName, Value: "aaaaaaaaaa", Start: 2, End: 12},
	}

	masked, mapping := c.Mask(text, spans)
	assert.Equal(t, "xx[NAME_00000001]yy", masked)
	require.Len(t, mapping, 1)
	assert.Equal(t, "aaaaaaaaaa", mapping["[NAME_00000001]"])
}

func TestMaskOverlapTieEarlierOffsetWins(t *testing.T) {
	c := deterministicCodec()
	text := "abcdefgh"
	spans := []Span{
		{Category: CategoryOther, Value: "cdef", Start: 2, End: 6},
		{Category: CategoryName, Value: "abcd", Start: 0, End: 4},
	}

	masked, mapping := c.Mask(text, spans)
	assert.Equal(t, "[NAME_00000001]efgh", masked)
	require.Len(t, mapping, 1)
	assert.Equal(t, "abcd", mapping["[NAME_00000001]"])
}

func TestMaskNonOverlappingKeepsAll(t *testing.T) {
	c := deterministicCodec()
	text := "a@b.com and c@d.com"
	spans := []Span{
		{Category: CategoryEmail, Value: "c@d.com", Start: 12, End: 19},
		{Category: CategoryEmail, Value: "a@b.com", Start: 0, End: 7},
	}

	masked, mapping := c.Mask(text, spans)
	assert.Len(t, mapping, 2)
	assert.NotContains(t, masked, "a@b.com")
	assert.NotContains(t, masked, "c@d.com")
	assert.Equal(t, text, c.Unmask(masked, mapping))
}

func TestUnmaskDroppedPlaceholders(t *testing.T) {
	c := deterministicCodec()
	text := "John Doe called 555-0101"
	spans := []Span{
		{Category: CategoryName, Value: "John Doe", Start: 0, End: 8},
		{Category: CategoryPhone, Value: "555-0101", Start: 16, End: 24},
	}
	_, mapping := c.Mask(text, spans)

	// The handler echoed only one placeholder back and dropped the other.
	reply := "Thanks [NAME_00000001], we will be in touch."
	got := c.Unmask(reply, mapping)
	assert.Equal(t, "Thanks John Doe, we will be in touch.", got)
}

func TestUnmaskUnknownPlaceholderLeftVerbatim(t *testing.T) {
	c := NewCodec()
	mapping := Mapping{"[NAME_00000001]": "John"}
	reply := "hello [NAME_deadbeef] and [NAME_00000001]"
	assert.Equal(t, "hello [NAME_deadbeef] and John", c.Unmask(reply, mapping))
}

func TestUnmaskEmptyMapping(t *testing.T) {
	c := NewCodec()
	assert.Equal(t, "unchanged", c.Unmask("unchanged", Mapping{}))
	assert.Equal(t, "unchanged", c.Unmask("unchanged", nil))
}

func TestMaskInvalidSpansIgnored(t *testing.T) {
	c := NewCodec()
	masked, mapping := c.Mask("short", []Span{
		{Category: CategoryName, Value: "", Start: -1, End: 2},
		{Category: CategoryName, Value: "x", Start: 3, End: 3},
		{Category: CategoryName, Value: "shorter", Start: 0, End: 7},
		{Category: CategoryName, Value: "t?", Start: 4, End: 6},
	})
	assert.Equal(t, "short", masked)
	assert.Empty(t, mapping)
}

// Round-trip property: for any text free of the placeholder grammar and any
// set of spans that are genuine substrings, unmask(mask(text)) == text.
func TestMaskUnmaskRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9@.\-]{1,12}`), 1, 20).Draw(t, "words")
		text := strings.Join(words, " ")
		require.False(t, PlaceholderPattern.MatchString(text))

		// Mark a random subset of words as detected spans.
		var spans []Span
		offset := 0
		for i, w := range words {
			if rapid.Bool().Draw(t, fmt.Sprintf("pii%d", i)) {
				spans = append(spans, Span{
					Category: CategoryOther,
					Value:    w,
					Start:    offset,
					End:      offset + len(w),
				})
			}
			offset += len(w) + 1
		}

		c := NewCodec()
		masked, mapping := c.Mask(text, spans)
		assert.Equal(t, text, c.Unmask(masked, mapping))
	})
}
