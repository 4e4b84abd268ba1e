// Package artwork defines the artwork record shown by the table and the
// decoder that maps catalog payloads onto it.
package artwork

// Record is a single artwork row.
// Every attribute except ID may be nil when the catalog sends null or omits it.
type Record struct {
	ID            string  `json:"id"`
	Title         *string `json:"title"`
	PlaceOfOrigin *string `json:"place_of_origin"`
	ArtistDisplay *string `json:"artist_display"`
	Inscriptions  *string `json:"inscriptions"`
	DateStart     *string `json:"date_start"`
	DateEnd       *string `json:"date_end"`
}

// Page is one decoded page of the catalog listing.
type Page struct {
	// Records are the valid items in payload order.
	Records []Record

	// Total is the record count across all pages, as reported by the catalog.
	Total int

	// Rejected lists payload items that did not match the record schema.
	Rejected []ItemError
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return Record{
		ID:            r.ID,
		Title:         cloneString(r.Title),
		PlaceOfOrigin: cloneString(r.PlaceOfOrigin),
		ArtistDisplay: cloneString(r.ArtistDisplay),
		Inscriptions:  cloneString(r.Inscriptions),
		DateStart:     cloneString(r.DateStart),
		DateEnd:       cloneString(r.DateEnd),
	}
}

// CloneRecords deep-copies a slice of records. A nil slice stays nil.
func CloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// Text returns the value of an optional attribute, or "" when it is nil.
func Text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
