package types

// RegisterRequest represents the expected JSON body for user registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,username" example:"alice"`         // Desired username. Must be unique.
	Email    string `json:"email" validate:"required,email,max=254" example:"alice@x.com"` // User's email address. Must be unique.
	Password string `json:"password" validate:"required,password" example:"Password1"`     // User's desired password.
}

// LoginRequest represents the expected JSON body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254" example:"alice@x.com"`
	Password string `json:"password" validate:"required,max=72" example:"Password1"`
}

// VerifyCodeRequest confirms email ownership.
type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254" example:"alice@x.com"`
	Code  string `json:"code" validate:"required,len=6,numeric" example:"042917"`
}

// EmailRequest is shared by resend-code and forgot-password.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254" example:"alice@x.com"`
}

// ResetPasswordRequest consumes a reset token.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required,max=256"`
	NewPassword string `json:"new_password" validate:"required,password" example:"NewPassw0rd"`
}

// ChangePasswordRequest represents the expected JSON body for changing the authenticated user's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=72"`
	NewPassword     string `json:"new_password" validate:"required,password"`
}

// UpdateProfileRequest carries the mutable profile fields.
type UpdateProfileRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,username" example:"alice_2"`
}

// RefreshTokenRequest represents the expected JSON body for refreshing tokens.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SetRoleRequest is the admin role mutation body.
type SetRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=user admin" example:"admin"`
}

// Response represents a generic API response for success or error messages.
type Response struct {
	Success              bool   `json:"success" example:"true"`
	Message              string `json:"message,omitempty" example:"Operation successful"`
	Code                 string `json:"code,omitempty" example:"INVALID_CODE"`
	RequiresVerification bool   `json:"requires_verification,omitempty"`
	RetryAfterSeconds    int    `json:"retry_after_seconds,omitempty"`
	RequestID            string `json:"request_id,omitempty"`
	Data                 any    `json:"data,omitempty"`
}

// RegisterResponse is the data payload of a successful registration.
type RegisterResponse struct {
	User      *PublicUser `json:"user"`
	EmailSent bool        `json:"email_sent"`
}

// LoginResponse is the data payload of a successful login.
type LoginResponse struct {
	TokenPair
	User *PublicUser `json:"user"`
}

// UsernameAvailability is returned by the check-username endpoint.
type UsernameAvailability struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}
