package pii

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nlip-soln/nlipmesh/gateway"
	"github.com/nlip-soln/nlipmesh/logging"
)

// ErrDetectionDegraded signals that detection could not run (backend failure
// or unparsable model output) and the empty span set it shipped with means
// "nothing detected", not "nothing present". Callers log it and continue;
// it must never surface an error into the handler path.
var ErrDetectionDegraded = errors.New("pii detection degraded")

// Detector produces the set of sensitive spans found in a text. Determinism
// is not required; implementations backed by a model may miss spans (false
// negatives) or over-report (false positives merely over-mask).
type Detector interface {
	Detect(ctx context.Context, text string) ([]Span, error)
}

// ModelDetector delegates classification to a text-completion backend and
// parses its structured reply. It holds no state between calls.
type ModelDetector struct {
	gw     gateway.Gateway
	logger logging.Logger
}

// ModelDetectorOptions configure a ModelDetector.
type ModelDetectorOptions struct {
	Logger logging.Logger
}

// NewModelDetector creates a detector backed by the given gateway.
func NewModelDetector(gw gateway.Gateway, optFns ...func(o *ModelDetectorOptions)) *ModelDetector {
	opts := ModelDetectorOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelDetector{gw: gw, logger: logging.OrNoOp(opts.Logger)}
}

const detectionPromptTemplate = `Analyze the following text and extract ALL specific PII values that need to be masked. Be thorough and identify every piece of personal information.

Text: %q

Extract EXACT values, as they appear in the text, for:
- Names (first names, last names, full names)
- Social Security Numbers
- Email addresses
- Phone numbers
- Credit card numbers
- Street addresses
- Dates of birth
- Driver's license numbers
- Passport numbers
- Any other personal identifiers

Respond with a JSON object in this format:
{"pii_items": [{"value": "John Doe", "type": "name"}, {"value": "123-45-6789", "type": "ssn"}]}

Only respond with the JSON object, no additional text.`

// Detect implements Detector. On any backend or parse failure it fails safe:
// the returned span set is empty and the error wraps ErrDetectionDegraded.
func (d *ModelDetector) Detect(ctx context.Context, text string) ([]Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	raw, err := d.gw.Complete(ctx, fmt.Sprintf(detectionPromptTemplate, text))
	if err != nil {
		return nil, fmt.Errorf("%w: completion failed: %v", ErrDetectionDegraded, err)
	}

	findings, ok := parseFindings(raw)
	if !ok {
		return nil, fmt.Errorf("%w: unparsable detector output", ErrDetectionDegraded)
	}

	spans := resolveSpans(text, findings)
	d.logger.Debug("pii detection completed", "findings", len(findings), "spans", len(spans))
	return spans, nil
}

// resolveSpans locates every occurrence of each reported value in the source
// text. Values the model invented (not literally present) are dropped.
func resolveSpans(text string, findings []finding) []Span {
	var spans []Span
	for _, f := range findings {
		value := strings.TrimSpace(f.Value)
		if value == "" {
			continue
		}
		for from := 0; ; {
			idx := strings.Index(text[from:], value)
			if idx < 0 {
				break
			}
			start := from + idx
			spans = append(spans, Span{
				Category: normalizeCategory(f.Type),
				Value:    value,
				Start:    start,
				End:      start + len(value),
			})
			from = start + len(value)
		}
	}
	return spans
}

func normalizeCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryName:
		return CategoryName
	case CategoryEmail:
		return CategoryEmail
	case CategoryPhone:
		return CategoryPhone
	case CategorySSN:
		return CategorySSN
	case CategoryCreditCard, "credit card", "creditcard":
		return CategoryCreditCard
	case CategoryAddress:
		return CategoryAddress
	case CategoryDateOfBirth, "dob", "date of birth":
		return CategoryDateOfBirth
	case CategoryLicense, "drivers_license", "driver's license":
		return CategoryLicense
	case CategoryPassport:
		return CategoryPassport
	default:
		return CategoryOther
	}
}
