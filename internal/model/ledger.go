package model

import "time"

// LedgerKind identifies why a balance changed
type LedgerKind string

const (
	LedgerInitial  LedgerKind = "initial"   // Opening balance of a new player
	LedgerEntryFee LedgerKind = "entry_fee" // Debit on game create or join
	LedgerPrize    LedgerKind = "prize"     // Credit to a winner
	LedgerRefund   LedgerKind = "refund"    // Compensation of an entry fee
)

// LedgerEntry records one successful balance mutation
type LedgerEntry struct {
	PlayerID      PlayerID   `json:"player_id"`
	Kind          LedgerKind `json:"kind"`
	Amount        int64      `json:"amount"` // Signed; debits are negative
	BalanceBefore int64      `json:"balance_before"`
	BalanceAfter  int64      `json:"balance_after"`
	GameID        GameID     `json:"game_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
