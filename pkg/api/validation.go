package api

// Validate checks the register request for required fields.
func (r *RegisterRequest) Validate() *APIError {
	if r.UserID == "" {
		return NewInvalidRequestError("userId", "userId is required")
	}
	if r.Password == "" {
		return NewInvalidRequestError("password", "password is required")
	}
	if r.APIKey == "" {
		return NewInvalidRequestError("apiKey", "apiKey is required")
	}
	return nil
}

// Validate checks the login request for required fields.
func (r *LoginRequest) Validate() *APIError {
	if r.UserID == "" {
		return NewInvalidRequestError("userId", "userId is required")
	}
	if r.Password == "" {
		return NewInvalidRequestError("password", "password is required")
	}
	if r.APIKey == "" {
		return NewInvalidRequestError("apiKey", "apiKey is required")
	}
	return nil
}
