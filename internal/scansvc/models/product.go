package models

// Product is the display form of a product lookup: a task title and an
// optional multi-line notes block. Notes is empty when the lookup fell back
// to the bare barcode.
type Product struct {
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
}
