package model

// TokenPair is an access/refresh token pair issued on login or rotation.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
