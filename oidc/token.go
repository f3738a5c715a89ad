package oidc

// Token is the persisted OIDC token bundle.
type Token struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Scope        string
	TokenType    string
	ExpiresAt    int64 // unix seconds, absolute
}

// refreshSkewSeconds is the window before ExpiresAt at which Client.Token
// proactively refreshes.
const refreshSkewSeconds = 30

type tokenResponseWire struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (w tokenResponseWire) toToken(now int64) Token {
	return Token{
		AccessToken:  w.AccessToken,
		RefreshToken: w.RefreshToken,
		IDToken:      w.IDToken,
		Scope:        w.Scope,
		TokenType:    w.TokenType,
		ExpiresAt:    now + w.ExpiresIn,
	}
}
