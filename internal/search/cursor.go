package search

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ehr/ehr/internal/apperr"
)

// Cursor is the opaque paging token of spec §4.3(h): "(last_updated, id)
// from the last row of the current page".
type Cursor struct {
	LastUpdated time.Time
	ID          string
}

// Encode renders the cursor as the opaque base64 token sent in Bundle links.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%s|%s", c.LastUpdated.UTC().Format(time.RFC3339Nano), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Cursor.Encode.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, apperr.Invalid("cursor", "malformed paging cursor")
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return Cursor{}, apperr.Invalid("cursor", "malformed paging cursor")
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Cursor{}, apperr.Invalid("cursor", "malformed paging cursor timestamp")
	}
	return Cursor{LastUpdated: t, ID: parts[1]}, nil
}

// PageClause builds the "(last_updated, id) > (cursor)" predicate for
// forward paging, or "<" for backward, appending its args at argIdx.
func PageClause(resAlias string, cursor Cursor, backward bool, argIdx *int, args *[]interface{}) string {
	op := ">"
	if backward {
		op = "<"
	}
	return fmt.Sprintf("(%s.last_updated, %s.id) %s (%s, %s)",
		resAlias, resAlias, op, arg(argIdx, cursor.LastUpdated, args), arg(argIdx, cursor.ID, args))
}

// ParseCount parses _count, clamping to [0, max].
func ParseCount(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
