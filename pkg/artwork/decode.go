package artwork

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload indicates the listing envelope did not match the expected shape.
	ErrMalformedPayload = errors.New("malformed catalog payload")

	// ErrMalformedItem indicates a single item of the listing could not be mapped.
	ErrMalformedItem = errors.New("malformed artwork item")
)

// ItemError describes a rejected item by its position in the payload.
type ItemError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e ItemError) Unwrap() error {
	return e.Err
}

type rawPayload struct {
	Data       *[]json.RawMessage `json:"data"`
	Pagination *rawPagination     `json:"pagination"`
}

type rawPagination struct {
	Total *json.Number `json:"total"`
}

// rawItem lists the catalog fields the table uses. Anything else is dropped.
type rawItem struct {
	ID            json.RawMessage `json:"id"`
	Title         json.RawMessage `json:"title"`
	PlaceOfOrigin json.RawMessage `json:"place_of_origin"`
	ArtistDisplay json.RawMessage `json:"artist_display"`
	Inscriptions  json.RawMessage `json:"inscriptions"`
	DateStart     json.RawMessage `json:"date_start"`
	DateEnd       json.RawMessage `json:"date_end"`
}

// Decode maps a catalog listing body onto a Page.
//
// The envelope must carry a data array and a non-negative integer
// pagination.total, otherwise ErrMalformedPayload is returned. Items that
// are not objects, lack an id, or carry non-scalar values are collected in
// Page.Rejected and left out of Page.Records.
func Decode(data []byte) (*Page, error) {
	var payload rawPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if payload.Data == nil {
		return nil, fmt.Errorf("%w: missing data array", ErrMalformedPayload)
	}
	if payload.Pagination == nil || payload.Pagination.Total == nil {
		return nil, fmt.Errorf("%w: missing pagination.total", ErrMalformedPayload)
	}

	total, err := payload.Pagination.Total.Int64()
	if err != nil || total < 0 {
		return nil, fmt.Errorf("%w: pagination.total must be a non-negative integer (got %s)",
			ErrMalformedPayload, payload.Pagination.Total.String())
	}

	page := &Page{
		Records: make([]Record, 0, len(*payload.Data)),
		Total:   int(total),
	}

	for i, raw := range *payload.Data {
		record, err := decodeItem(raw)
		if err != nil {
			page.Rejected = append(page.Rejected, ItemError{Index: i, Err: err})
			continue
		}
		page.Records = append(page.Records, record)
	}

	return page, nil
}

func decodeItem(raw json.RawMessage) (Record, error) {
	var item rawItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedItem, err)
	}

	id, err := scalar("id", item.ID)
	if err != nil {
		return Record{}, err
	}
	if id == nil || *id == "" {
		return Record{}, fmt.Errorf("%w: missing id", ErrMalformedItem)
	}

	record := Record{ID: *id}
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  **string
	}{
		{"title", item.Title, &record.Title},
		{"place_of_origin", item.PlaceOfOrigin, &record.PlaceOfOrigin},
		{"artist_display", item.ArtistDisplay, &record.ArtistDisplay},
		{"inscriptions", item.Inscriptions, &record.Inscriptions},
		{"date_start", item.DateStart, &record.DateStart},
		{"date_end", item.DateEnd, &record.DateEnd},
	}

	for _, f := range fields {
		v, err := scalar(f.name, f.raw)
		if err != nil {
			return Record{}, err
		}
		*f.dst = v
	}

	return record, nil
}

// scalar renders a JSON string or number as text. Absent and null values map to nil.
func scalar(field string, raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch c := trimmed[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedItem, field, err)
		}
		return &s, nil
	case c == '-' || (c >= '0' && c <= '9'):
		s := string(trimmed)
		return &s, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a string or number", ErrMalformedItem, field)
	}
}
