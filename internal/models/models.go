package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Identity is the user id typed at login. It keys every order and match query.
type Identity string

type OrderID string

// Address is a display string only; it never carries coordinates back into orders.
type Address string

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Role says which side of a ride a participant is on.
type Role int

const (
	Owner Role = iota
	Customer
)

// Discriminator is the wire encoding the matching service expects.
func (r Role) Discriminator() string {
	switch r {
	case Owner:
		return "0"
	case Customer:
		return "1"
	}
	return ""
}

func (r Role) String() string {
	switch r {
	case Owner:
		return "owner"
	case Customer:
		return "customer"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func (r Role) Valid() bool { return r == Owner || r == Customer }

// ParseRole accepts the path form ("owner", "customer") and the wire form ("0", "1").
func ParseRole(s string) (Role, bool) {
	switch s {
	case "owner", "0":
		return Owner, true
	case "customer", "1":
		return Customer, true
	}
	return 0, false
}

type Order struct {
	Identity Identity   `json:"identity"`
	Role     Role       `json:"role"`
	Window   TimeWindow `json:"window"`
	Address  Address    `json:"address"`
}

// MatchSet is the latest match query result. Records are opaque to the client.
type MatchSet []json.RawMessage

// Display renders the set the way the match panel shows it. Empty is "[]".
func (m MatchSet) Display() string {
	if len(m) == 0 {
		return "[]"
	}
	b, err := json.Marshal([]json.RawMessage(m))
	if err != nil {
		return "[]"
	}
	return string(b)
}

type PaymentSession struct {
	Open    bool   `json:"open"`
	Details string `json:"details"`
}

// Match is the record shape produced by the local matching simulator.
type Match struct {
	OwnerOrderID    OrderID   `json:"owner_order_id"`
	OwnerID         Identity  `json:"owner_id"`
	CustomerOrderID OrderID   `json:"customer_order_id"`
	CustomerID      Identity  `json:"customer_id"`
	OwnerAddress    Address   `json:"owner_address"`
	CustomerAddress Address   `json:"customer_address"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
}

// StoredOrder is an order as the matching simulator keeps it.
type StoredOrder struct {
	ID        OrderID
	Order     Order
	CreatedAt time.Time
}

// DeviceFix is a position report published by the device location feed.
type DeviceFix struct {
	DeviceID   string    `json:"device_id"`
	Loc        GeoPoint  `json:"loc"`
	Permission string    `json:"permission"` // "granted" or "denied"
	At         time.Time `json:"at"`
}
