package config

// APIConfig configures the HTTP API serving auction records and routes.
// The API is disabled when Addr is empty.
type APIConfig struct {
	Addr string `json:"addr"`
	// Token, when set, is required as a bearer token on /api/auctions.
	Token string `json:"token"`
}
