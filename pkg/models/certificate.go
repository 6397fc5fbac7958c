package models

import (
	"time"

	"github.com/google/uuid"
)

// Certificate is a signed authenticity record for a piece of original
// content. The hash is derived only from the file bytes, so identical
// bytes always map to the same hash. File name is advisory and is not
// part of the hash. Records are immutable once issued.
type Certificate struct {
	ID        uuid.UUID `db:"id"         json:"certificate_id"`
	Hash      string    `db:"hash"       json:"hash"`
	FileName  string    `db:"file_name"  json:"file_name"`
	Standard  string    `db:"standard"   json:"standard"`
	Issuer    string    `db:"issuer"     json:"issuer"`
	Signature string    `db:"signature"  json:"signature"`
	VerifyURL string    `db:"-"          json:"verify_url,omitempty"`
	IssuedAt  time.Time `db:"issued_at"  json:"issued_at"`
}
