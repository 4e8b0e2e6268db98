package erpapi

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/velo-till/internal/domain/client"
)

var _ client.Directory = (*ClientService)(nil)

// ClientService implements client.Directory over the clients endpoints.
type ClientService struct {
	c *Client
}

// NewClientService returns a ClientService using c.
func NewClientService(c *Client) *ClientService {
	return &ClientService{c: c}
}

// List returns every client, following pagination.
func (s *ClientService) List(ctx context.Context) ([]client.Client, error) {
	var out []client.Client
	for path := "/clients/"; path != ""; {
		data, err := s.c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, errors.Wrap(err, "list clients")
		}
		path, err = decodeList(data, func(d *jx.Decoder) error {
			cl, err := decodeClient(d)
			if err != nil {
				return err
			}
			out = append(out, cl)
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "decode clients")
		}
	}
	return out, nil
}

// Create registers a new client.
func (s *ClientService) Create(ctx context.Context, req client.CreateRequest) (*client.Client, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("first_name", func(e *jx.Encoder) { e.Str(req.FirstName) })
		e.Field("last_name", func(e *jx.Encoder) { e.Str(req.LastName) })
		e.Field("email", func(e *jx.Encoder) { e.Str(req.Email) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(req.Phone) })
		e.Field("address", func(e *jx.Encoder) { e.Str(req.Address) })
		e.Field("city", func(e *jx.Encoder) { e.Str(req.City) })
		e.Field("postal_code", func(e *jx.Encoder) { e.Str(req.PostalCode) })
	})

	data, err := s.c.do(ctx, http.MethodPost, "/clients/", e.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "create client")
	}
	cl, err := decodeClient(jx.DecodeBytes(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode client")
	}
	return &cl, nil
}

func decodeClient(d *jx.Decoder) (client.Client, error) {
	var c client.Client
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			c.ID, err = decodeInt(d)
		case "first_name":
			c.FirstName, err = decodeString(d)
		case "last_name":
			c.LastName, err = decodeString(d)
		case "full_name":
			c.FullName, err = decodeString(d)
		case "email":
			c.Email, err = decodeString(d)
		case "phone":
			c.Phone, err = decodeString(d)
		case "address":
			c.Address, err = decodeString(d)
		case "city":
			c.City, err = decodeString(d)
		case "postal_code":
			c.PostalCode, err = decodeString(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	return c, err
}
