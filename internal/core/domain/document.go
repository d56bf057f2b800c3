package domain

import "time"

// DocumentKind is the role an uploaded document plays in a KYC submission.
type DocumentKind string

const (
	DocumentKindGovernmentID   DocumentKind = "GOVERNMENT_ID"
	DocumentKindProofOfAddress DocumentKind = "PROOF_OF_ADDRESS"
)

func (k DocumentKind) Valid() bool {
	return k == DocumentKindGovernmentID || k == DocumentKindProofOfAddress
}

// IdentityDocument is content-addressed: Ref is the hex SHA-256 of the bytes.
// The same bytes uploaded by two sellers share storage but not ownership.
type IdentityDocument struct {
	Ref         string       `json:"document_ref"`
	SellerID    string       `json:"seller_id"`
	Kind        DocumentKind `json:"kind"`
	ContentType string       `json:"content_type"`
	Size        int64        `json:"size"`
	CreatedAt   time.Time    `json:"created_at"`
}
