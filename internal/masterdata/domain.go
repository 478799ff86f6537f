package masterdata

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Customer is the buying party on an order.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the delivery destination on an order.
type Store struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PartyRef selects an existing record by ID or names one to resolve.
type PartyRef struct {
	ID      int64  `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Empty reports whether neither id nor name was supplied.
func (r PartyRef) Empty() bool {
	return r.ID == 0 && NormalizeName(r.Name) == ""
}

// NormalizeName trims and collapses inner whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NameKey is the case-folded identity used by the unique name_key indexes.
func NameKey(name string) string {
	return cases.Fold().String(NormalizeName(name))
}
