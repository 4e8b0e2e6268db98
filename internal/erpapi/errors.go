package erpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrUnauthorized matches an *Error with status 401.
var ErrUnauthorized = &Error{StatusCode: http.StatusUnauthorized, Message: "unauthorized"}

// ErrBodyTooLarge is returned for a response body over the size limit.
var ErrBodyTooLarge = errors.New("response body too large")

// Error is a non-2xx response of the API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("erp api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Is reports whether target is an *Error with the same status code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.StatusCode == e.StatusCode
}

// errorMessage extracts a readable message from an error body. The API
// answers with {"detail": ...}, {"error": ...} or per-field lists.
func errorMessage(body []byte) string {
	d := jx.DecodeBytes(body)
	if d.Next() == jx.Object {
		var fields []string
		var msg string
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch d.Next() {
			case jx.String:
				s, err := d.Str()
				if err != nil {
					return err
				}
				switch string(key) {
				case "detail", "error", "message":
					msg = s
				default:
					fields = append(fields, fmt.Sprintf("%s: %s", key, s))
				}
				return nil
			case jx.Array:
				var parts []string
				if err := d.Arr(func(d *jx.Decoder) error {
					if d.Next() != jx.String {
						return d.Skip()
					}
					s, err := d.Str()
					parts = append(parts, s)
					return err
				}); err != nil {
					return err
				}
				fields = append(fields, fmt.Sprintf("%s: %s", key, strings.Join(parts, " ")))
				return nil
			default:
				return d.Skip()
			}
		})
		if err == nil {
			if msg != "" {
				return msg
			}
			if len(fields) > 0 {
				return strings.Join(fields, "; ")
			}
		}
	}

	s := strings.TrimSpace(string(body))
	if len(s) > errorBodyLimit {
		s = s[:errorBodyLimit]
	}
	return s
}
