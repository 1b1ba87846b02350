package models

const (
	// DefaultPageSize is applied when a page requests no explicit limit.
	DefaultPageSize = 50
	// MaxPageSize caps a single page regardless of the requested limit.
	MaxPageSize = 200
)

// Page describes offset pagination for list queries. Offset/limit follow
// standard semantics; there is no cursor stability guarantee across
// concurrent writes.
type Page struct {
	Offset  int
	Limit   int
	OrderBy string // column key; repositories whitelist per entity
	Desc    bool
}

// Normalize clamps the page to sane bounds and applies defaults.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
