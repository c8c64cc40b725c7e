package domain

import "github.com/google/uuid"

// AddressKind distinguishes shipping from billing addresses.
type AddressKind string

const (
	AddressShipping AddressKind = "shipping"
	AddressBilling  AddressKind = "billing"
)

// Address is a postal address owned by a user. Addresses are managed by the
// address book and only read by the account lifecycle.
type Address struct {
	ID         uuid.UUID   `json:"id"`
	UserID     uuid.UUID   `json:"user_id"`
	Kind       AddressKind `json:"kind"`
	Line1      string      `json:"line1"`
	Line2      string      `json:"line2,omitempty"`
	City       string      `json:"city"`
	Region     string      `json:"region,omitempty"`
	PostalCode string      `json:"postal_code"`
	Country    string      `json:"country"`
	IsDefault  bool        `json:"is_default"`
}
