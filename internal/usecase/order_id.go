package usecase

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// NewOrderID builds "<prefix><last 10 digits of unix ms><3 random digits>".
// Uniqueness is probabilistic; nothing checks it against existing orders.
func NewOrderID(prefix string, now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 10 {
		ms = ms[len(ms)-10:]
	}
	return fmt.Sprintf("%s%s%03d", prefix, ms, rand.Intn(1000))
}
