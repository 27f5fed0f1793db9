package authapi

import "traq/cmd/identity"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

// tokenResponse is the login payload. Field names follow the OAuth2 bearer
// convention clients already know; role and name ride along so the UI can
// render without a second round trip.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
	Role        string `json:"role"`
	Name        string `json:"name"`
}

type userInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type usersResponse struct {
	Users []userInfo `json:"users"`
}

type verifyResponse struct {
	Valid   bool           `json:"valid"`
	Payload *verifyPayload `json:"payload,omitempty"`
}

type verifyPayload struct {
	Subject   string `json:"sub"`
	Role      string `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

func toUserInfo(u identity.User) userInfo {
	return userInfo{
		ID:       u.ID,
		Email:    u.Username,
		FullName: u.DisplayName,
		Role:     string(u.Role),
	}
}
