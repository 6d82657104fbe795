package payload

type SendPhoneVerificationRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type VerifyPhoneRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code"  validate:"required,len=6,numeric"`
}

// The token routes sit behind the bearer middleware; the user identity
// comes from the validated claims, never the request body.
type IssueVerificationTokenRequest struct {
	Channel string `json:"channel" validate:"required,oneof=email phone"`
	Email   string `json:"email"   validate:"omitempty,email"`
	Token   string `json:"token"   validate:"omitempty,len=6,numeric"`
}

type VerifyVerificationTokenRequest struct {
	Channel string `json:"channel" validate:"required,oneof=email phone"`
	Token   string `json:"token"   validate:"required"`
}
