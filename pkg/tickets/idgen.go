package tickets

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/Jacobbrewer1/kennel/pkg/dataaccess"
)

const (
	minTicketID = 1000
	maxTicketID = 9999

	// maxTicketIDAttempts bounds the draws made for a free ticket ID.
	maxTicketIDAttempts = 20
)

// IDGenerator draws a candidate ticket ID.
type IDGenerator func() string

// RandomTicketID returns a random four digit ticket ID.
func RandomTicketID() string {
	return strconv.Itoa(minTicketID + rand.Intn(maxTicketID-minTicketID+1))
}

// newTicketID draws ticket IDs until one is not held by the store.
func (e *Engine) newTicketID(ctx context.Context) (string, error) {
	for i := 0; i < maxTicketIDAttempts; i++ {
		id := e.ids()
		_, err := e.store.GetTicketByTicketID(ctx, id)
		if errors.Is(err, dataaccess.ErrNotFound) {
			return id, nil
		} else if err != nil {
			return "", fmt.Errorf("error checking ticket id: %w", err)
		}
		TicketIDCollisions.Inc()
	}
	return "", fmt.Errorf("no free ticket id after %d attempts", maxTicketIDAttempts)
}
