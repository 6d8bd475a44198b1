package ledger

// Field size limits. Metadata is opaque to the ledger; only its size
// is checked.
const (
	MaxProductIDLen   = 64
	MaxNameLen        = 128
	MaxOriginLen      = 256
	MaxCategoryLen    = 64
	MaxDescriptionLen = 2048
	MaxTagLen         = 64
	MaxEventTypeLen   = 64
	MaxLocationLen    = 256
	MaxMetadataBytes  = 4096
	MaxCustomValueLen = 512

	MaxTags           = 20
	MaxCertifications = 50
	MaxMediaHashes    = 50
	MaxCustomFields   = 20

	// DefaultBatchCap bounds per-call cost of batch appends.
	DefaultBatchCap = 100
)

func validateNewProduct(np NewProduct) error {
	switch {
	case np.ID == "":
		return ErrInvalidProductID
	case len(np.ID) > MaxProductIDLen:
		return ErrProductIDTooLong
	case np.Name == "":
		return ErrInvalidProductName
	case len(np.Name) > MaxNameLen:
		return ErrProductNameTooLong
	case np.Origin == "":
		return ErrInvalidOrigin
	case len(np.Origin) > MaxOriginLen:
		return ErrOriginTooLong
	case np.Owner == "":
		return ErrInvalidOwner
	case len(np.Category) > MaxCategoryLen:
		return ErrCategoryTooLong
	case len(np.Description) > MaxDescriptionLen:
		return ErrDescriptionTooLong
	}

	if len(np.Tags) > MaxTags {
		return ErrTooManyTags
	}
	for _, t := range np.Tags {
		if len(t) > MaxTagLen {
			return ErrTagTooLong
		}
	}
	if len(np.Certifications) > MaxCertifications {
		return ErrTooManyCertifications
	}
	if len(np.MediaHashes) > MaxMediaHashes {
		return ErrTooManyMediaHashes
	}
	if len(np.Custom) > MaxCustomFields {
		return ErrTooManyCustomFields
	}
	for _, v := range np.Custom {
		if len(v) > MaxCustomValueLen {
			return ErrCustomValueTooLong
		}
	}
	return nil
}

func validateEventInput(in EventInput) error {
	switch {
	case in.EventType == "":
		return ErrInvalidEventType
	case len(in.EventType) > MaxEventTypeLen:
		return ErrEventTypeTooLong
	case len(in.Location) > MaxLocationLen:
		return ErrLocationTooLong
	case len(in.Metadata) > MaxMetadataBytes:
		return ErrMetadataTooLarge
	}
	return nil
}
