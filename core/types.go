package core

// Identity identifies the author of committed transactions.
type Identity struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// Direction is the order in which a cursor walks its range.
type Direction string

const (
	Next       Direction = "next"
	NextUnique Direction = "nextunique"
	Prev       Direction = "prev"
	PrevUnique Direction = "prevunique"
)

// ParseDirection returns the direction named by s, falling back to Next for
// anything that is not one of the four directions.
func ParseDirection(s string) Direction {
	switch d := Direction(s); d {
	case Next, NextUnique, Prev, PrevUnique:
		return d
	default:
		return Next
	}
}

func (d Direction) Reverse() bool {
	return d == Prev || d == PrevUnique
}

func (d Direction) Unique() bool {
	return d == NextUnique || d == PrevUnique
}

// Mode is the access mode of a transaction.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
	VersionChange
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "readonly"
	case ReadWrite:
		return "readwrite"
	case VersionChange:
		return "versionchange"
	default:
		return "unknown"
	}
}

// Writable reports whether the mode permits mutations.
func (m Mode) Writable() bool {
	return m == ReadWrite || m == VersionChange
}
