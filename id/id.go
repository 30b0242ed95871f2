// Package id defines the prefixed, sortable identifiers used by every press
// record. IDs render as "prefix_suffix" where the suffix is a UUIDv7 in
// base32, so they sort by creation time.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix names the record kind encoded in an ID.
type Prefix string

const (
	PrefixEntry    Prefix = "entry"
	PrefixRevision Prefix = "rev"
	PrefixDelivery Prefix = "dlv"
	PrefixDLQ      Prefix = "dlq"
	PrefixEndpoint Prefix = "wep"
	PrefixAudit    Prefix = "aud"
)

// ID is a prefix-qualified TypeID. The zero value is Nil.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates an ID with the given prefix. An invalid prefix is a
// programming error and panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses "prefix_suffix" into an ID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and rejects IDs of another kind.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// ParseOptional parses s, mapping the empty string to Nil.
func ParseOptional(s string, expected Prefix) (ID, error) {
	if s == "" {
		return Nil, nil
	}

	return ParseWithPrefix(s, expected)
}

// ──────────────────────────────────────────────────
// Constructors
// ──────────────────────────────────────────────────

func NewEntryID() ID    { return New(PrefixEntry) }
func NewRevisionID() ID { return New(PrefixRevision) }
func NewDeliveryID() ID { return New(PrefixDelivery) }
func NewDLQID() ID      { return New(PrefixDLQ) }
func NewEndpointID() ID { return New(PrefixEndpoint) }
func NewAuditID() ID    { return New(PrefixAudit) }

// ──────────────────────────────────────────────────
// Parsers
// ──────────────────────────────────────────────────

func ParseEntryID(s string) (ID, error)    { return ParseWithPrefix(s, PrefixEntry) }
func ParseRevisionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRevision) }
func ParseDeliveryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDelivery) }
func ParseDLQID(s string) (ID, error)      { return ParseWithPrefix(s, PrefixDLQ) }
func ParseEndpointID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEndpoint) }
func ParseAuditID(s string) (ID, error)    { return ParseWithPrefix(s, PrefixAudit) }

// ──────────────────────────────────────────────────
// Methods
// ──────────────────────────────────────────────────

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the kind prefix, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // NULL
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil

		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
