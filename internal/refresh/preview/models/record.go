package models

import "time"

// Record is a server-held changeset awaiting apply. The preview token only
// carries the record ID.
type Record struct {
	ID        string
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the record can no longer be applied at now.
func (r *Record) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

func (r *Record) Clone() *Record {
	c := *r
	c.Payload = append([]byte(nil), r.Payload...)
	return &c
}
