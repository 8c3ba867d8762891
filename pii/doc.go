// Package pii implements the two halves of session PII protection: a
// Detector that finds sensitive spans in raw text (delegating classification
// to a text-completion backend) and a Codec that substitutes those spans with
// reversible placeholder tokens of the form [CATEGORY_<opaque-id>].
//
// Detection fails open: a backend failure or unparsable model output yields
// an empty span set plus ErrDetectionDegraded for the caller to log, never an
// error into the message handling path. Unmasking is exact regardless of
// detector quality, so false positives merely over-mask.
package pii
