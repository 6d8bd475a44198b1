package ledger

import (
	"errors"
	"fmt"
)

// Terminal error kinds surfaced by the public operations. Every
// operation either succeeds or fails with exactly one of these; no
// partial application is ever observable.
var (
	ErrNotFound        = errors.New("product not found")
	ErrEventNotFound   = errors.New("event not found")
	ErrDuplicateID     = errors.New("product id already registered")
	ErrUnauthenticated = errors.New("caller identity not verifiable")
	ErrUnauthorized    = errors.New("identity lacks required access")
	ErrInvalidBatch    = errors.New("invalid batch")
	ErrBatchTooLarge   = errors.New("batch exceeds maximum size")
	ErrProductInactive = errors.New("product is inactive")
)

// ErrInvalidInput is the common ancestor of every field validation
// failure; callers classify with errors.Is without matching fields.
var ErrInvalidInput = errors.New("invalid input")

var (
	ErrInvalidProductID   = fmt.Errorf("%w: product id must be non-empty", ErrInvalidInput)
	ErrInvalidProductName = fmt.Errorf("%w: product name must be non-empty", ErrInvalidInput)
	ErrInvalidOrigin      = fmt.Errorf("%w: origin must be non-empty", ErrInvalidInput)
	ErrInvalidOwner       = fmt.Errorf("%w: owner must be non-empty", ErrInvalidInput)
	ErrInvalidActor       = fmt.Errorf("%w: actor must be non-empty", ErrInvalidInput)
	ErrInvalidEventType   = fmt.Errorf("%w: event type must be non-empty", ErrInvalidInput)

	ErrProductIDTooLong   = fmt.Errorf("%w: product id too long", ErrInvalidInput)
	ErrProductNameTooLong = fmt.Errorf("%w: product name too long", ErrInvalidInput)
	ErrOriginTooLong      = fmt.Errorf("%w: origin too long", ErrInvalidInput)
	ErrCategoryTooLong    = fmt.Errorf("%w: category too long", ErrInvalidInput)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long", ErrInvalidInput)
	ErrEventTypeTooLong   = fmt.Errorf("%w: event type too long", ErrInvalidInput)
	ErrLocationTooLong    = fmt.Errorf("%w: location too long", ErrInvalidInput)
	ErrMetadataTooLarge   = fmt.Errorf("%w: metadata too large", ErrInvalidInput)

	ErrTooManyTags           = fmt.Errorf("%w: too many tags", ErrInvalidInput)
	ErrTagTooLong            = fmt.Errorf("%w: tag too long", ErrInvalidInput)
	ErrTooManyCertifications = fmt.Errorf("%w: too many certifications", ErrInvalidInput)
	ErrTooManyMediaHashes    = fmt.Errorf("%w: too many media hashes", ErrInvalidInput)
	ErrTooManyCustomFields   = fmt.Errorf("%w: too many custom fields", ErrInvalidInput)
	ErrCustomValueTooLong    = fmt.Errorf("%w: custom field value too long", ErrInvalidInput)
)
