package matchmaker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sablecluster/matchmaker/internal/driver"
)

// retryBackoffUnit is the base delay between SeatReservationError
// retries, scaled by attempt number: a small linear backoff rather
// than retrying immediately, to avoid amplifying load during a
// seat-contention burst.
const retryBackoffUnit = 20 * time.Millisecond

func backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * retryBackoffUnit)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func driverQueryByID(roomID string) driver.Query {
	return driver.Query{RoomID: roomID}
}

func unmarshalBool(raw json.RawMessage, out *bool) error {
	return json.Unmarshal(raw, out)
}
