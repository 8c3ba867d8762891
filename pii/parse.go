package pii

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/nlip-soln/nlipmesh/internal/util"
)

// finding is one category/value pair reported by the detection model before
// spans are resolved against the source text.
type finding struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// parseFindings runs the strict parse of model output. The primary format is
// a JSON object {"pii_items": [{"value": ..., "type": ...}]}; when that
// fails, a line-oriented "TYPE: VALUE" fallback is attempted. The boolean is
// false only when neither format yields anything usable; a parse failure is
// mapped to fail-open behavior by the caller, never to a hard error.
func parseFindings(raw string) ([]finding, bool) {
	if findings, ok := parseJSONFindings(raw); ok {
		return findings, true
	}
	return parseLineFindings(raw)
}

func parseJSONFindings(raw string) ([]finding, bool) {
	obj, ok := util.ExtractJSONObject(raw)
	if !ok {
		return nil, false
	}
	var parsed struct {
		Items []finding `json:"pii_items"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil, false
	}
	if parsed.Items == nil {
		return nil, false
	}
	return parsed.Items, true
}

// lineTypePattern restricts the fallback format's type tag to a bare word so
// arbitrary prose containing a colon is not mistaken for a finding.
var lineTypePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z_]*$`)

// parseLineFindings handles the degraded "TYPE: VALUE" one-per-line format
// some models fall back to despite the JSON instruction.
func parseLineFindings(raw string) ([]finding, bool) {
	var findings []finding
	for _, line := range strings.Split(raw, "\n") {
		typ, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		typ = strings.TrimSpace(typ)
		value = strings.TrimSpace(value)
		if value == "" || !lineTypePattern.MatchString(typ) {
			continue
		}
		findings = append(findings, finding{Value: value, Type: strings.ToLower(typ)})
	}
	return findings, len(findings) > 0
}
