package models

// FetchRequest is the parsed form of one inline directive.
type FetchRequest struct {
	Country     string `json:"country"`
	ProductID   string `json:"product_id"`
	ImageWidth  int    `json:"image_width"`
	ImageHeight int    `json:"image_height"`
	ShowPrice   bool   `json:"show_price"`
}

// ProductRecord holds the metadata extracted from one fetched page.
// Title is the only mandatory field; the others are empty when absent.
type ProductRecord struct {
	ProductID  string `json:"product_id"`
	Title      string `json:"title"`
	Author     string `json:"author,omitempty"`
	ISBN       string `json:"isbn,omitempty"`
	Price      string `json:"price,omitempty"`
	Rating     string `json:"rating,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	ProductURL string `json:"product_url"`
}

// HasPrice reports whether the page exposed a price.
func (p *ProductRecord) HasPrice() bool {
	return p != nil && p.Price != ""
}

// Validate returns the problems that make the record unusable for rendering.
func (p *ProductRecord) Validate() []string {
	var errors []string

	if p.Title == "" {
		errors = append(errors, "Title is required")
	}

	if p.ProductURL == "" {
		errors = append(errors, "Product URL is required")
	}

	return errors
}
