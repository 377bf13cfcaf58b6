package registry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Principal is an opaque, already verified caller identity.
type Principal string

// Anonymous is the sender recorded on registration ledger entries.
const Anonymous Principal = "anonymous"

// LandID identifies one parcel. Identifiers are never reused.
type LandID uint64

// Price is a listing price in the smallest currency unit.
type Price uint64

// Coordinates is the origin corner of a parcel's bounding box.
type Coordinates struct {
	X int32 `json:"x" cbor:"x"`
	Y int32 `json:"y" cbor:"y"`
	Z int32 `json:"z" cbor:"z"`
}

// Dimensions extends a parcel from its Coordinates along each axis.
type Dimensions struct {
	Width  uint32 `json:"width" cbor:"width"`
	Height uint32 `json:"height" cbor:"height"`
	Depth  uint32 `json:"depth" cbor:"depth"`
}

// LandType tags a parcel's intended use.
type LandType string

const (
	Residential   LandType = "Residential"
	Commercial    LandType = "Commercial"
	Industrial    LandType = "Industrial"
	Agricultural  LandType = "Agricultural"
	Entertainment LandType = "Entertainment"
	Mixed         LandType = "Mixed"
)

// LandTypes lists every accepted LandType in declaration order.
var LandTypes = []LandType{Residential, Commercial, Industrial, Agricultural, Entertainment, Mixed}

// ParseLandType resolves a case-insensitive land type name.
func ParseLandType(raw string) (LandType, error) {
	name := strings.TrimSpace(raw)
	for _, t := range LandTypes {
		if strings.EqualFold(name, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown land type %q", ErrInvalidInput, raw)
}

// Valid reports whether t is one of LandTypes.
func (t LandType) Valid() bool {
	for _, known := range LandTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t *LandType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseLandType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// LandMetadata is optional free-form annotation attached to a parcel.
type LandMetadata struct {
	Environment     *string  `json:"environment,omitempty" cbor:"environment,omitempty"`
	SpecialFeatures []string `json:"special_features" cbor:"special_features"`
	AccessRoads     []string `json:"access_roads" cbor:"access_roads"`
	Utilities       []string `json:"utilities" cbor:"utilities"`
}

func (m *LandMetadata) clone() *LandMetadata {
	if m == nil {
		return nil
	}
	out := &LandMetadata{
		SpecialFeatures: cloneStrings(m.SpecialFeatures),
		AccessRoads:     cloneStrings(m.AccessRoads),
		Utilities:       cloneStrings(m.Utilities),
	}
	if m.Environment != nil {
		env := *m.Environment
		out.Environment = &env
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// LandRecord is the authoritative record for one parcel.
type LandRecord struct {
	ID          LandID        `json:"id" cbor:"id"`
	Owner       Principal     `json:"owner" cbor:"owner"`
	Coordinates Coordinates   `json:"coordinates" cbor:"coordinates"`
	Dimensions  Dimensions    `json:"dimensions" cbor:"dimensions"`
	LandType    LandType      `json:"land_type" cbor:"land_type"`
	Description string        `json:"description" cbor:"description"`
	Metadata    *LandMetadata `json:"metadata,omitempty" cbor:"metadata,omitempty"`
	CreatedAt   time.Time     `json:"created_at" cbor:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" cbor:"updated_at"`
}

func (r LandRecord) clone() LandRecord {
	r.Metadata = r.Metadata.clone()
	return r
}

// Registration is the caller-supplied payload for RegisterLand.
type Registration struct {
	Coordinates Coordinates   `json:"coordinates"`
	Dimensions  Dimensions    `json:"dimensions"`
	LandType    LandType      `json:"land_type"`
	Description string        `json:"description"`
	Metadata    *LandMetadata `json:"metadata,omitempty"`
}

// Listing is an active offer to sell a parcel. Land is a copy taken at
// listing time and is not refreshed afterwards.
type Listing struct {
	LandID   LandID     `json:"land_id" cbor:"land_id"`
	Seller   Principal  `json:"seller" cbor:"seller"`
	Price    Price      `json:"price" cbor:"price"`
	ListedAt time.Time  `json:"listed_at" cbor:"listed_at"`
	Land     LandRecord `json:"land_info" cbor:"land_info"`
}

func (l Listing) clone() Listing {
	l.Land = l.Land.clone()
	return l
}

// TransactionKind classifies a ledger record.
type TransactionKind string

const (
	KindRegistration TransactionKind = "Registration"
	KindTransfer     TransactionKind = "Transfer"
	KindSale         TransactionKind = "Sale"
)

// TransactionRecord is one immutable ledger entry.
type TransactionRecord struct {
	LandID    LandID          `json:"land_id" cbor:"land_id"`
	From      Principal       `json:"from" cbor:"from"`
	To        Principal       `json:"to" cbor:"to"`
	Price     *Price          `json:"price,omitempty" cbor:"price,omitempty"`
	Kind      TransactionKind `json:"transaction_type" cbor:"transaction_type"`
	Timestamp time.Time       `json:"timestamp" cbor:"timestamp"`
}

func (t TransactionRecord) clone() TransactionRecord {
	if t.Price != nil {
		p := *t.Price
		t.Price = &p
	}
	return t
}

// CoordinateRange is an inclusive box used by coordinate filters.
type CoordinateRange struct {
	Min Coordinates `json:"min"`
	Max Coordinates `json:"max"`
}

// Contains reports whether c lies within r on every axis, bounds included.
func (r CoordinateRange) Contains(c Coordinates) bool {
	return c.X >= r.Min.X && c.X <= r.Max.X &&
		c.Y >= r.Min.Y && c.Y <= r.Max.Y &&
		c.Z >= r.Min.Z && c.Z <= r.Max.Z
}

// SearchFilters narrows SearchLands and SearchMarketplace. Nil fields are
// ignored; set fields are combined with AND.
type SearchFilters struct {
	LandType *LandType        `json:"land_type,omitempty"`
	MinPrice *Price           `json:"min_price,omitempty"`
	MaxPrice *Price           `json:"max_price,omitempty"`
	Range    *CoordinateRange `json:"coordinates_range,omitempty"`
	MinArea  *uint32          `json:"min_area,omitempty"`
	Features []string         `json:"features,omitempty"`
}

// Statistics summarizes registry state.
type Statistics struct {
	TotalLands        uint64 `json:"total_lands"`
	TotalOwners       uint64 `json:"total_owners"`
	LandsForSale      uint64 `json:"lands_for_sale"`
	AveragePrice      *Price `json:"average_price,omitempty"`
	TotalTransactions uint64 `json:"total_transactions"`
}

// PricePoint is one priced ledger entry.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     Price     `json:"price"`
}
