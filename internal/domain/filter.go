package domain

// IndexFilter contains filtering/pagination parameters for stored index
// entries. Zero values mean "no restriction".
type IndexFilter struct {
	SourceLabel string
	Priority    *Priority
	Search      *string // case-insensitive prefix of the normalized term
	Limit       int
	Offset      int
}
