package erpapi

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// decodeDecimal reads a decimal sent either as a JSON string, the default
// rendering of the API's decimal fields, or as a number.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for decimal", d.Next())
	}
}

// decodeString reads a string that may be null.
func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeInt reads an integer that may be null or sent as a string.
func decodeInt(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return strconv.ParseInt(s, 10, 64)
	default:
		return d.Int64()
	}
}

func decodeBool(d *jx.Decoder) (bool, error) {
	if d.Next() == jx.Null {
		return false, d.Null()
	}
	return d.Bool()
}

// decodeList reads a list response, either a paginated page
// {"next": ..., "results": [...]} or a bare array, calling item for every
// element. It returns the link to the next page, if any.
func decodeList(data []byte, item func(d *jx.Decoder) error) (string, error) {
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Array:
		return "", d.Arr(item)
	case jx.Object:
		var next string
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "results":
				return d.Arr(item)
			case "next":
				s, err := decodeString(d)
				next = s
				return err
			default:
				return d.Skip()
			}
		})
		return next, err
	default:
		return "", errors.Errorf("unexpected %s list body", d.Next())
	}
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}
