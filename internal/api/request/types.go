package request

// CreateGuestRequest is the request body for creating a guest player
type CreateGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the request body for registering a player
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// MatchRequest is the request body for finding or creating a game
type MatchRequest struct {
	EntryFee int64 `json:"entry_fee"`
}

// MoveRequest is the request body for moving a token. Token is a pointer so
// a missing field is told apart from token 0.
type MoveRequest struct {
	Token *int `json:"token"`
}

// ChatRequest is the request body for sending a chat message
type ChatRequest struct {
	Text string `json:"text"`
	Type string `json:"type,omitempty"`
}
