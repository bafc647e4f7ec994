package partner

const DefaultCategory = "Быт"

// Airtable column names.
const (
	FieldName        = "Name"
	FieldDescription = "Description"
	FieldCategory    = "Category"
	FieldOffer       = "Offer"
	FieldPromoCode   = "PromoCode"
	FieldURL         = "URL"
	FieldLogo        = "Logo"
)

type Partner struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Logo        string `json:"logo"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Offer       string `json:"offer"`
	PromoCode   string `json:"promoCode"`
	URL         string `json:"url"`
}

type CreatePartnerRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Offer       string `json:"offer" validate:"required"`
	PromoCode   string `json:"promoCode" validate:"required"`
	URL         string `json:"url" validate:"required"`
	Logo        string `json:"logo,omitempty"`
}

// Record is a partner row as stored by the records API.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type ListResponse struct {
	Partners []Partner `json:"partners"`
}

type CreateResponse struct {
	Success bool   `json:"success"`
	Data    Record `json:"data"`
}
