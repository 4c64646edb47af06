package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateNumber builds a human readable document number such as PO-20260102-1A2B3C4D.
func GenerateNumber(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix)
}
