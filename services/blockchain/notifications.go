package blockchain

import (
	"context"

	"github.com/bitcoin-sv/minichain/model"
	"github.com/ordishs/go-utils"
)

type subscriber struct {
	ch     chan *model.Notification
	source string
}

// Subscribe returns a channel receiving a notification for every accepted block. The channel is
// closed when ctx is done. Notifications are delivered while the service is started; a slow
// subscriber may miss some.
func (b *Blockchain) Subscribe(ctx context.Context, source string) (<-chan *model.Notification, error) {
	s := subscriber{
		ch:     make(chan *model.Notification, 10),
		source: source,
	}

	b.subscribersMu.Lock()
	b.subscribers[s.ch] = s
	b.subscribersMu.Unlock()

	b.logger.Infof("[Blockchain] new subscription from %s", source)

	go func() {
		<-ctx.Done()

		b.subscribersMu.Lock()
		delete(b.subscribers, s.ch)
		close(s.ch)
		b.subscribersMu.Unlock()

		b.logger.Infof("[Blockchain] subscription from %s removed", source)
	}()

	return s.ch, nil
}

// notify queues a notification without blocking; it is dropped when the queue is full.
func (b *Blockchain) notify(notificationType model.NotificationType, node *blockNode) {
	notification := &model.Notification{
		Type:   notificationType,
		Hash:   node.block.Hash(),
		Height: node.height(),
	}

	select {
	case b.notifications <- notification:
	default:
		b.logger.Debugf("[Blockchain] notification queue full, dropping %s", notification)
	}
}

// sendNotifications fans queued notifications out to the subscribers until ctx is done.
func (b *Blockchain) sendNotifications(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.logger.Infof("[Blockchain] stopping notification sender")
			return

		case notification := <-b.notifications:
			b.subscribersMu.RLock()
			for _, s := range b.subscribers {
				// a subscriber channel may be closed concurrently, SafeSend recovers from that
				go utils.SafeSend(s.ch, notification)
			}
			b.subscribersMu.RUnlock()
		}
	}
}
