package pii

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlip-soln/nlipmesh/gateway"
)

// jsonGateway replies to every prompt with the same canned payload.
func jsonGateway(payload string) *gateway.Mock {
	gw := gateway.NewMock("detector-test")
	gw.SetFallback(func(string) (string, error) { return payload, nil })
	return gw
}

func TestModelDetectorDetect(t *testing.T) {
	gw := jsonGateway(`{"pii_items": [{"value": "John Doe", "type": "name"}, {"value": "john.doe@example.com", "type": "email"}]}`)
	d := NewModelDetector(gw)

	text := "Hi I am John Doe and my email is john.doe@example.com"
	spans, err := d.Detect(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, spans, 2)

	assert.Equal(t, CategoryName, spans[0].Category)
	assert.Equal(t, "John Doe", spans[0].Value)
	assert.Equal(t, "John Doe", text[spans[0].Start:spans[0].End])

	assert.Equal(t, CategoryEmail, spans[1].Category)
	assert.Equal(t, "john.doe@example.com", text[spans[1].Start:spans[1].End])
}

func TestModelDetectorRepeatedValue(t *testing.T) {
	gw := jsonGateway(`{"pii_items": [{"value": "Ana", "type": "name"}]}`)
	d := NewModelDetector(gw)

	spans, err := d.Detect(context.Background(), "Ana met Ana's sister")
	require.NoError(t, err)
	// Both occurrences of the value become spans.
	require.Len(t, spans, 2)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, 8, spans[1].Start)
}

func TestModelDetectorDropsInventedValues(t *testing.T) {
	gw := jsonGateway(`{"pii_items": [{"value": "Jane Roe", "type": "name"}]}`)
	d := NewModelDetector(gw)

	spans, err := d.Detect(context.Background(), "nothing about that person here")
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestModelDetectorGatewayFailureDegrades(t *testing.T) {
	gw := gateway.NewMock("detector-test")
	gw.SetFallback(func(string) (string, error) {
		return "", gateway.ErrBackendUnavailable
	})
	d := NewModelDetector(gw)

	spans, err := d.Detect(context.Background(), "Hi I am John Doe")
	assert.ErrorIs(t, err, ErrDetectionDegraded)
	assert.Empty(t, spans)
}

func TestModelDetectorUnparsableOutputDegrades(t *testing.T) {
	gw := jsonGateway("I'm sorry, I cannot help with that.")
	d := NewModelDetector(gw)

	spans, err := d.Detect(context.Background(), "Hi I am John Doe")
	assert.ErrorIs(t, err, ErrDetectionDegraded)
	assert.Empty(t, spans)
}

func TestModelDetectorEmptyText(t *testing.T) {
	gw := gateway.NewMock("detector-test")
	gw.SetFallback(func(string) (string, error) {
		t.Fatal("gateway must not be called for empty text")
		return "", nil
	})
	d := NewModelDetector(gw)

	spans, err := d.Detect(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"name", CategoryName},
		{"SSN", CategorySSN},
		{"credit card", CategoryCreditCard},
		{"dob", CategoryDateOfBirth},
		{"drivers_license", CategoryLicense},
		{"frequent flyer number", CategoryOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeCategory(tt.in), tt.in)
	}
}
