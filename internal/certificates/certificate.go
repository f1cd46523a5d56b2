// Package certificates issues and serves the proof-of-completion documents
// produced when a stage completes. Certificates are append-only: a reset
// stage drops its link to the certificate but the row is never changed.
package certificates

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/internal/stages"
)

// Issuer is recorded on every certificate.
const Issuer = "Bursa Malaysia"

// Type tags a certificate with the stage class that produced it.
type Type string

const (
	TypeWakalah     Type = "WAKALAH_AGREEMENT"
	TypeQabd        Type = "QABD_CONFIRMATION"
	TypeLiquidation Type = "LIQUIDATION_CERTIFICATE"
)

// TypeFor returns the certificate type issued on completion of stage.
func TypeFor(stage stages.Stage) Type {
	switch stage {
	case stages.T1:
		return TypeQabd
	case stages.T2:
		return TypeLiquidation
	default:
		return TypeWakalah
	}
}

// Valid reports whether t is a known certificate type.
func (t Type) Valid() bool {
	switch t {
	case TypeWakalah, TypeQabd, TypeLiquidation:
		return true
	}
	return false
}

// Prefix is the three-letter code used in certificate numbers.
func (t Type) Prefix() string {
	if len(t) < 3 {
		return string(t)
	}
	return string(t[:3])
}

// Label is the display name of t.
func (t Type) Label() string {
	switch t {
	case TypeWakalah:
		return "Wakalah Agreement"
	case TypeQabd:
		return "Qabd Confirmation"
	case TypeLiquidation:
		return "Liquidation Certificate"
	}
	return string(t)
}

// Certificate is an issued proof-of-completion record. Data holds the
// JSON-encoded Payload.
type Certificate struct {
	ID            uuid.UUID       `json:"id"`
	Number        string          `json:"number"`
	Type          Type            `json:"type"`
	StageRecordID uuid.UUID       `json:"stageRecordId"`
	TransactionID uuid.UUID       `json:"transactionId"`
	Issuer        string          `json:"issuer"`
	IssuedAt      time.Time       `json:"issuedAt"`
	Data          json.RawMessage `json:"data"`
}

// View is a certificate joined with its producing stage and transaction
// reference, plus display formatting.
type View struct {
	Certificate
	Stage          stages.Stage `json:"stage"`
	TransactionRef string       `json:"transactionRef"`
	FormattedType  string       `json:"formattedType"`
	Details        []string     `json:"details"`
}
