package models

// Account is one configured claude.ai account. SessionKey and OrgID are
// in-memory caches of vault values; the vault remains the persisted copy.
type Account struct {
	ID         string
	Label      string
	SessionKey string
	OrgID      string
}

// IsConfigured reports whether the account has the credentials a usage
// fetch needs.
func (a Account) IsConfigured() bool {
	return a.SessionKey != "" && a.OrgID != ""
}

// AccountMetadata is the persisted non-secret projection of an Account.
// Session keys never appear here; they live in the vault only.
type AccountMetadata struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	OrgID string `json:"orgId,omitempty"`
}

// Metadata returns the persistable projection of the account.
func (a Account) Metadata() AccountMetadata {
	return AccountMetadata{ID: a.ID, Label: a.Label, OrgID: a.OrgID}
}
