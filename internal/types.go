package internal

import (
	"time"
)

// ProfileRecord is one WebID subject known to the store, addressed by a short
// local alias.
type ProfileRecord struct {
	Alias       string    `db:"alias" json:"alias" validate:"required,max=64,printable"`
	DisplayName string    `db:"display_name" json:"display_name" validate:"required,max=64,printable"`
	WebID       string    `db:"webid" json:"webid" validate:"required,webid"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CertificateRecord is one certificate in a subject's certificate list.
// Position 0 is the subject's primary identity certificate.
type CertificateRecord struct {
	ID              string    `db:"id" json:"id"`
	Alias           string    `db:"alias" json:"alias"`
	Position        int       `db:"position" json:"position"`
	Purpose         string    `db:"purpose" json:"purpose"`
	CertificatePath string    `db:"certificate_path" json:"certificate_path"`
	KeyPath         string    `db:"key_path" json:"key_path"`
	Modulus         string    `db:"modulus" json:"modulus"`
	Exponent        uint64    `db:"exponent" json:"exponent"`
	Fingerprint     string    `db:"fingerprint" json:"sha256_fingerprint"`
	NotBefore       time.Time `db:"not_before" json:"not_before"`
	NotAfter        time.Time `db:"not_after" json:"not_after"`
	PEM             string    `db:"pem" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
