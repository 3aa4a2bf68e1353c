package models

// Space is a rentable unit owned by a provider. Catalog data is managed
// outside this service; the rental core only claims and prices it.
type Space struct {
	ID         string  `json:"id"`
	ProviderID string  `json:"provider_id"`
	Price      float64 `json:"price"`
	Published  bool    `json:"published"`
	RentedBy   *string `json:"rented_by,omitempty"`
}

// Claimable reports whether a new rent may be requested against the space.
func (s *Space) Claimable() bool {
	return s.Published && s.RentedBy == nil
}
