package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateOrderNumber builds a human-facing order reference of the form
// H2H-<year>-<4 digits>. The suffix is random, not sequential, and is not
// checked for uniqueness; the order id stays the canonical key.
func GenerateOrderNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generating order number: %w", err)
	}
	return fmt.Sprintf("H2H-%d-%04d", now.Year(), n.Int64()), nil
}
