package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Decimal is an exact-precision money value stored as BSON Decimal128.
// Quote math must never round-trip through float64: repeated averaging
// passes would accumulate binary rounding drift.
type Decimal struct {
	decimal.Decimal
}

// NewDecimal wraps a shopspring decimal.
func NewDecimal(d decimal.Decimal) Decimal {
	return Decimal{Decimal: d}
}

// DecimalFromString parses a decimal string (exchange APIs deliver prices
// as strings).
func DecimalFromString(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return Decimal{Decimal: d}, nil
}

// ZeroDecimal returns the zero value used as the averaging accumulator seed.
func ZeroDecimal() Decimal {
	return Decimal{Decimal: decimal.Zero}
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (d Decimal) MarshalBSONValue() (bsontype.Type, []byte, error) {
	dec128, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return bson.TypeNull, nil, fmt.Errorf("decimal %q to Decimal128: %w", d.String(), err)
	}
	return bson.MarshalValue(dec128)
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler. Decimal128 is the
// canonical representation; string and double are accepted for documents
// written by older tooling.
func (d *Decimal) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeDecimal128:
		dec128, ok := raw.Decimal128OK()
		if !ok {
			return fmt.Errorf("malformed Decimal128 value")
		}
		parsed, err := decimal.NewFromString(dec128.String())
		if err != nil {
			return fmt.Errorf("Decimal128 %q: %w", dec128.String(), err)
		}
		d.Decimal = parsed
		return nil
	case bson.TypeString:
		parsed, err := decimal.NewFromString(raw.StringValue())
		if err != nil {
			return fmt.Errorf("decimal string: %w", err)
		}
		d.Decimal = parsed
		return nil
	case bson.TypeDouble:
		d.Decimal = decimal.NewFromFloat(raw.Double())
		return nil
	default:
		return fmt.Errorf("cannot decode %s into Decimal", t)
	}
}
