package dto

// RegisterRequest represents the request body for creating an account.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoginRequest represents the request body for logging in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest represents the request body for a profile update.
// The account is selected by the "email" request header.
type UpdateProfileRequest struct {
	Name     string  `json:"name"`
	LastName *string `json:"lastName,omitempty"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	AuthToken string `json:"authtoken"`
	Email     string `json:"email"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	AuthToken string `json:"authtoken"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// UpdateProfileResponse is returned after a successful profile update.
type UpdateProfileResponse struct {
	AuthToken string `json:"authtoken"`
}
