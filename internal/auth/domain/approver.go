package domain

import "time"

// Approver is the person behind an approval token. Subject is recorded as
// approvedBy on sent drafts.
type Approver struct {
	Subject   string    `json:"subject"`
	TokenID   string    `json:"tokenId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssuedToken is the output of issue_approval_token.
type IssuedToken struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	TokenID   string    `json:"tokenId"`
	ExpiresAt time.Time `json:"expiresAt"`
}
