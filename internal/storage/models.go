package storage

import "encoding/json"

// Gem is a recorded payload and the page it came from
type Gem struct {
	URL     string          `json:"url"`
	Payload json.RawMessage `json:"payload"`
}

// Product is the schema.org Product view of an ld+json gem
type Product struct {
	URL          string `json:"url"`
	Name         string `json:"name"`
	Brand        string `json:"brand"`
	GTIN13       string `json:"gtin13"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	Availability string `json:"availability"`
}
