// Package lobby publishes room add/remove notifications for clients
// that want a live list of public rooms, without polling query().
package lobby

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sablecluster/matchmaker/internal/presence"
)

// Channel is the cluster-wide lobby notification channel.
const Channel = "$lobby"

// Notify publishes a "<roomId>,<0|1>" message on Channel; removed=true
// encodes as 1. Call this after any listing add or remove, skipping
// unlisted rooms.
func Notify(ctx context.Context, p presence.Presence, roomID string, removed bool) error {
	flag := "0"
	if removed {
		flag = "1"
	}
	return p.Publish(ctx, Channel, []byte(fmt.Sprintf("%s,%s", roomID, flag)))
}

// Handler receives one lobby notification: roomID and whether it was a
// removal. Subscribers fetch the full listing themselves via query()
// on addition; removal carries no listing.
type Handler func(ctx context.Context, roomID string, removed bool)

// Subscribe installs handler for every lobby notification.
func Subscribe(ctx context.Context, p presence.Presence, handler Handler) (presence.Subscription, error) {
	return p.Subscribe(ctx, Channel, func(ctx context.Context, ch string, payload []byte) {
		roomID, flag, ok := strings.Cut(string(payload), ",")
		if !ok {
			return
		}
		removed, err := strconv.Atoi(flag)
		if err != nil {
			return
		}
		handler(ctx, roomID, removed == 1)
	})
}
