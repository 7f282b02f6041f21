package model

import (
	"encoding/json"
	"fmt"
)

// Board geometry
const (
	TrackLength       = 52 // Cells on the shared outer track
	HomeStretchLength = 5  // Private cells between the track and the finish
)

// Wire encoding of token positions used in the game_state blob
const (
	encodedHome          = -1
	encodedStretchOffset = 51 // Home stretch step n is encoded as 51+n (52..56)
	encodedFinished      = 57
)

// TokenKind tags where a token currently is
type TokenKind int

const (
	TokenAtHome TokenKind = iota
	TokenOnTrack
	TokenOnHomeStretch
	TokenFinished
)

func (k TokenKind) String() string {
	switch k {
	case TokenAtHome:
		return "home"
	case TokenOnTrack:
		return "track"
	case TokenOnHomeStretch:
		return "home_stretch"
	case TokenFinished:
		return "finished"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is a single playing piece. Cell is meaningful only on the track
// (absolute cell 0..51) and Step only in the home stretch (1..5).
type Token struct {
	Kind TokenKind
	Cell int
	Step int
}

// HomeToken returns a token waiting in the home base
func HomeToken() Token { return Token{Kind: TokenAtHome} }

// TrackToken returns a token on the given absolute track cell
func TrackToken(cell int) Token { return Token{Kind: TokenOnTrack, Cell: cell} }

// StretchToken returns a token on the given home stretch step
func StretchToken(step int) Token { return Token{Kind: TokenOnHomeStretch, Step: step} }

// FinishedToken returns a token that reached the finish cell
func FinishedToken() Token { return Token{Kind: TokenFinished} }

// IsHome returns true if the token has not entered the board
func (t Token) IsHome() bool { return t.Kind == TokenAtHome }

// IsFinished returns true if the token reached the finish cell
func (t Token) IsFinished() bool { return t.Kind == TokenFinished }

// IsOnTrack returns true if the token is on the shared outer track
func (t Token) IsOnTrack() bool { return t.Kind == TokenOnTrack }

// Encode returns the integer position encoding: -1 home, 0-51 track,
// 52-56 home stretch, 57 finished
func (t Token) Encode() int {
	switch t.Kind {
	case TokenOnTrack:
		return t.Cell
	case TokenOnHomeStretch:
		return encodedStretchOffset + t.Step
	case TokenFinished:
		return encodedFinished
	default:
		return encodedHome
	}
}

// DecodeToken parses the integer position encoding
func DecodeToken(pos int) (Token, error) {
	switch {
	case pos == encodedHome:
		return HomeToken(), nil
	case pos >= 0 && pos < TrackLength:
		return TrackToken(pos), nil
	case pos > encodedStretchOffset && pos <= encodedStretchOffset+HomeStretchLength:
		return StretchToken(pos - encodedStretchOffset), nil
	case pos == encodedFinished:
		return FinishedToken(), nil
	default:
		return Token{}, fmt.Errorf("%w: %d", ErrInvalidTokenPosition, pos)
	}
}

func (t Token) String() string {
	switch t.Kind {
	case TokenOnTrack:
		return fmt.Sprintf("track:%d", t.Cell)
	case TokenOnHomeStretch:
		return fmt.Sprintf("stretch:%d", t.Step)
	default:
		return t.Kind.String()
	}
}

// MarshalJSON writes the integer position encoding
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Encode())
}

// UnmarshalJSON reads the integer position encoding
func (t *Token) UnmarshalJSON(data []byte) error {
	var pos int
	if err := json.Unmarshal(data, &pos); err != nil {
		return err
	}
	decoded, err := DecodeToken(pos)
	if err != nil {
		return err
	}
	*t = decoded
	return nil
}

// EncodeTokens converts a token array to its integer encoding
func EncodeTokens(tokens [TokensPerPlayer]Token) [TokensPerPlayer]int {
	var out [TokensPerPlayer]int
	for i, t := range tokens {
		out[i] = t.Encode()
	}
	return out
}

// Color identifies a player's side of the board
type Color string

const (
	ColorBlue   Color = "blue"
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
)

// IsValid returns true for the known colors
func (c Color) IsValid() bool {
	switch c {
	case ColorBlue, ColorRed, ColorGreen, ColorYellow:
		return true
	default:
		return false
	}
}
