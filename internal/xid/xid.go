package xid

import "github.com/google/uuid"

// New returns prefix-<uuid v7>, falling back to v4 if the clock source fails.
// v7 ids sort by creation time, which keeps sale and movement listings stable.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "-" + id.String()
}
