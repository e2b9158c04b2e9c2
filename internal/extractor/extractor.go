// Package extractor turns a document image into structured fields by calling a
// vision-capable chat/completions model.
package extractor

import (
	"context"
	"fmt"

	"docex/internal/model"
)

// Extractor extracts fields from a single document image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, filename string) (*model.ExtractionResult, error)
}

// Kind classifies why an extraction failed.
type Kind string

const (
	// KindRequest covers transport failures, including timeouts.
	KindRequest Kind = "request"
	// KindStatus is a non-2xx response from the model endpoint.
	KindStatus Kind = "status"
	// KindResponse is a 2xx response without usable message content.
	KindResponse Kind = "response"
)

// Error is returned by FireworksClient for every failed extraction.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("extraction service returned status %d: %s", e.StatusCode, e.Body)
	case KindRequest:
		return fmt.Sprintf("extraction request failed: %v", e.Err)
	default:
		if e.Err != nil {
			return fmt.Sprintf("invalid extraction response: %v", e.Err)
		}
		return "invalid extraction response"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Func adapts a plain function to the Extractor interface.
type Func func(ctx context.Context, image []byte, filename string) (*model.ExtractionResult, error)

func (f Func) Extract(ctx context.Context, image []byte, filename string) (*model.ExtractionResult, error) {
	return f(ctx, image, filename)
}
