package model

import (
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

type NotificationType string

const (
	// NotificationTypeBlock is sent when a block extends the canonical chain.
	NotificationTypeBlock NotificationType = "block"
	// NotificationTypeFork is sent when a block is accepted on a fork without changing the tip.
	NotificationTypeFork NotificationType = "fork"
	// NotificationTypeReorg is sent when a fork became the canonical chain.
	NotificationTypeReorg NotificationType = "reorg"
)

type Notification struct {
	Type   NotificationType `json:"type"`
	Hash   *chainhash.Hash  `json:"-"`
	Height uint32           `json:"height"`
}

func (n *Notification) String() string {
	return fmt.Sprintf("%s %d %s", n.Type, n.Height, n.Hash)
}
