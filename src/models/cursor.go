package models

import "prestar/src/types"

// ChainCursor remembers the last block a poller has fully processed, so a
// restart resumes instead of rescanning from genesis.
type ChainCursor struct {
	ID          string `json:"id" gorm:"primaryKey"`
	BlockNumber uint64 `json:"block_number"`
	types.Timestamps
}
