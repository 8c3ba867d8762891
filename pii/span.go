package pii

// Category classifies a detected sensitive span.
type Category string

const (
	// CategoryName covers first, last and full personal names.
	CategoryName Category = "name"
	// CategoryEmail covers email addresses.
	CategoryEmail Category = "email"
	// CategoryPhone covers phone numbers.
	CategoryPhone Category = "phone"
	// CategorySSN covers social security numbers.
	CategorySSN Category = "ssn"
	// CategoryCreditCard covers credit card numbers.
	CategoryCreditCard Category = "credit_card"
	// CategoryAddress covers street addresses.
	CategoryAddress Category = "address"
	// CategoryDateOfBirth covers dates of birth.
	CategoryDateOfBirth Category = "date_of_birth"
	// CategoryLicense covers driver's license numbers.
	CategoryLicense Category = "license"
	// CategoryPassport covers passport numbers.
	CategoryPassport Category = "passport"
	// CategoryOther covers any other personal identifier.
	CategoryOther Category = "other"
)

// Span is one detected PII occurrence: its category, the original substring
// and its byte offsets in the source text. Spans are produced fresh per
// detection call and never persisted.
type Span struct {
	Category Category `json:"category"`
	Value    string   `json:"value"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }
