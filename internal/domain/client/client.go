package client

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested client does not exist.
var ErrNotFound = errors.New("client not found")

// Client is a customer of the shop.
type Client struct {
	ID         int64
	FirstName  string
	LastName   string
	FullName   string
	Email      string
	Phone      string
	Address    string
	City       string
	PostalCode string
}

// DisplayName returns the name shown on the till, preferring the full name
// computed by the back office.
func (c Client) DisplayName() string {
	if c.FullName != "" {
		return c.FullName
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Directory defines operations on the remote client directory.
type Directory interface {
	List(ctx context.Context) ([]Client, error)
	Create(ctx context.Context, req CreateRequest) (*Client, error)
}

// Search returns the clients whose display name or email contains query
// (case-insensitive) or whose phone number contains it verbatim.
func Search(clients []Client, query string) []Client {
	raw := strings.TrimSpace(query)
	if raw == "" {
		return clients
	}
	q := strings.ToLower(raw)

	var out []Client
	for _, c := range clients {
		switch {
		case strings.Contains(strings.ToLower(c.DisplayName()), q),
			strings.Contains(strings.ToLower(c.Email), q),
			strings.Contains(c.Phone, raw):
			out = append(out, c)
		}
	}
	return out
}
