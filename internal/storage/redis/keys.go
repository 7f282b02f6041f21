package redis

import (
	"fmt"

	"github.com/ludoduel/ludo-server/internal/model"
)

// Key prefix for all game-related data
const keyPrefix = "ludo"

// Key generation functions for each entity type

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// registeredPlayerKey returns the Redis key for a RegisteredPlayer
func registeredPlayerKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:registered_player:%s", keyPrefix, playerID)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// balanceKey returns the Redis key holding a player's balance as an integer
func balanceKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:balance:%s", keyPrefix, playerID)
}

// ledgerKey returns the Redis key for the LIST of a player's ledger entries, newest first
func ledgerKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:ledger:%s", keyPrefix, playerID)
}

// gameKey returns the Redis key for a Game
func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, id)
}

// waitingIndexKey returns the Redis key for the ZSET of waiting games with a
// given entry fee, scored by creation time
func waitingIndexKey(entryFee int64) string {
	return fmt.Sprintf("%s:idx:waiting:%d", keyPrefix, entryFee)
}

// activeIndexKey returns the Redis key pointing at a player's active game
func activeIndexKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:idx:active:%s", keyPrefix, playerID)
}

// chatKey returns the Redis key for the LIST of a game's chat messages
func chatKey(gameID model.GameID) string {
	return fmt.Sprintf("%s:chat:%s", keyPrefix, gameID)
}
