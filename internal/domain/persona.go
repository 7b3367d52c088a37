package domain

// CommStyle is a single communication directive that personas are built from.
// Invisible styles stay in the catalog but are never composed.
type CommStyle struct {
	ID          string
	Key         string
	DisplayName string
	Visible     bool
	SortOrder   int
	Directive   string
}

// Persona is a named set of communication styles. System personas have no owner.
type Persona struct {
	ID           string
	OwnerID      string
	Name         string
	Description  string
	IsDefault    bool
	IsSystem     bool
	LegacyPrompt string
	StyleIDs     []string
}

// VisibleTo reports whether the account may use the persona.
func (p Persona) VisibleTo(accountID string) bool {
	if p.IsSystem {
		return true
	}
	return accountID != "" && p.OwnerID == accountID
}
