package payload

import "time"

type SignUpRequest struct {
	Email    string         `json:"email"    validate:"required,email"`
	Password string         `json:"password" validate:"required,min=8"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ChangePasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type UpdateEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type UpdatePhoneRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type AutoLoginRequest struct {
	Enabled bool `json:"enabled"`
}

type AuthStateResponse struct {
	Authenticated bool `json:"authenticated"`
}

type LoggedInResponse struct {
	LoggedIn bool `json:"logged_in"`
}

type SessionRecord struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	LoginTime       time.Time  `json:"login_time"`
	LogoutTime      *time.Time `json:"logout_time,omitempty"`
	DurationMinutes *int64     `json:"duration_minutes,omitempty"`
	DeviceInfo      *string    `json:"device_info,omitempty"`
}
