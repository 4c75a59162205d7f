package core

import "fmt"

// ValidateItem checks that an Item references a source.
func ValidateItem(item Item) error {
	if item.Source == "" {
		return ErrEmptySource
	}
	return nil
}

// ValidateDatum validates a Datum according to domain rules.
//
// Validation rules:
//   - Encoded datums only need non-empty Data
//   - Raw datums must have positive dimensions
//   - Raw Data length must equal Channels*Height*Width
func ValidateDatum(d *Datum) error {
	if d == nil {
		return fmt.Errorf("%w: datum is nil", ErrInvalidDatum)
	}

	if d.Encoded {
		if len(d.Data) == 0 {
			return fmt.Errorf("%w: encoded datum has no data", ErrInvalidDatum)
		}
		return nil
	}

	if d.Channels <= 0 || d.Height <= 0 || d.Width <= 0 {
		return fmt.Errorf("%w: dimensions %dx%dx%d", ErrInvalidDatum, d.Channels, d.Height, d.Width)
	}

	want := int(d.Channels) * int(d.Height) * int(d.Width)
	if len(d.Data) != want {
		return fmt.Errorf("%w: %w: want %d bytes, got %d", ErrInvalidDatum, ErrDataSizeMismatch, want, len(d.Data))
	}

	return nil
}
