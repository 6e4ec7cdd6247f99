package domain

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const cursorSeparator = ","

// Cursor is a keyset position in the newest-first item listing.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// EncodeCursor creates an opaque cursor string from timestamp and ID.
func EncodeCursor(c Cursor) string {
	key := strconv.FormatInt(c.CreatedAt.Unix(), 10) + cursorSeparator + c.ID
	return base64.URLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor parses the opaque cursor string back into timestamp and ID.
func DecodeCursor(encoded string) (Cursor, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: cursor encoding: %v", ErrInvalidInput, err)
	}

	parts := strings.SplitN(string(raw), cursorSeparator, 2)
	if len(parts) != 2 || parts[1] == "" {
		return Cursor{}, fmt.Errorf("%w: cursor format", ErrInvalidInput)
	}

	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: cursor timestamp: %v", ErrInvalidInput, err)
	}

	return Cursor{CreatedAt: time.Unix(sec, 0).UTC(), ID: parts[1]}, nil
}
