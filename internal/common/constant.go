package common

const (
	// UUIDField is the wire and column name of the global record identifier.
	UUIDField = "uuid"

	// ChangedField is the last-modified timestamp every catalog model carries.
	// The reconciler compares it with the incoming last_sync.
	ChangedField = "changed"

	// DefaultProduceQueue and DefaultConsumeQueue follow the queue names used by
	// the main deployment; the portal deployment swaps them.
	DefaultProduceQueue = "osis_portal"
	DefaultConsumeQueue = "osis"
)
