package models

import "time"

// TimetableSnapshot is a raw CMS timetable body kept for replay when the
// CMS is unreachable. Payload is stored verbatim and re-normalized on read.
type TimetableSnapshot struct {
	ID        string    `db:"id" json:"id"`
	Year      int       `db:"year" json:"year"`
	WeekType  string    `db:"week_type" json:"week_type"`
	Checksum  string    `db:"checksum" json:"checksum"`
	Payload   []byte    `db:"payload" json:"-"`
	FetchedAt time.Time `db:"fetched_at" json:"fetched_at"`
}
