package transport

// IntakeRequest is the lead body posted by the finder (or any page form).
// Text limits equal sanitize.MaxFieldLength so nothing the finder sends is
// rejected; the service trims names and phone further before storage.
type IntakeRequest struct {
	Email            string `json:"email" validate:"required,email,max=254"`
	FirstName        string `json:"firstName" validate:"max=200"`
	LastName         string `json:"lastName" validate:"max=200"`
	Phone            string `json:"phone" validate:"max=200"`
	AppInterest      string `json:"app_interest" validate:"max=200"`
	Category         string `json:"category" validate:"max=200"`
	RestaurantName   string `json:"restaurant_name" validate:"max=200"`
	RestaurantTables string `json:"restaurant_tables" validate:"max=200"`
	ProductsCount    string `json:"products_count" validate:"max=200"`
	Modules          string `json:"modules" validate:"max=65536"`
	Message          string `json:"message" validate:"max=65536"`
}

// IntakeResponse mirrors the lead API contract the finder expects.
type IntakeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
