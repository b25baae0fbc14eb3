package channel

// Interest is a set of readiness conditions.
type Interest uint8

const (
	// Readable means Read will return data, end-of-stream, or an error
	// without blocking.
	Readable Interest = 1 << iota
	// Writable means Write will accept at least one byte or fail without
	// blocking.
	Writable
)

// ReadWrite is the union of Readable and Writable.
const ReadWrite = Readable | Writable

// Has reports whether all conditions in o are present in i.
func (i Interest) Has(o Interest) bool {
	return i&o == o
}

// String returns a readable form of the interest set.
func (i Interest) String() string {
	switch i {
	case 0:
		return "none"
	case Readable:
		return "read"
	case Writable:
		return "write"
	case ReadWrite:
		return "read|write"
	default:
		return "invalid"
	}
}
