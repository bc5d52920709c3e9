package models

// Op is the kind of a committed local write.
type Op int

const (
	OpUpsert Op = iota
	OpDelete
)

func (o Op) String() string {
	if o == OpDelete {
		return "delete"
	}
	return "upsert"
}

// Mutation is returned by storage write operations. Callers forward it to the
// publisher once the surrounding transaction has committed.
type Mutation struct {
	Op     Op
	Record *Record
}
