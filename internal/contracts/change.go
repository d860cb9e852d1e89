package contracts

// ChangeKind classifies a content source notification.
type ChangeKind string

const (
	ChangeKindChanged ChangeKind = "changed"
	ChangeKindAdded   ChangeKind = "added"
	ChangeKindRemoved ChangeKind = "removed"
)

// ContentChange is emitted by a content source whenever the markdown it
// serves may have changed. Consumers treat every kind as "reload now".
type ContentChange struct {
	Kind      ChangeKind `json:"kind"`
	Path      string     `json:"path"`
	Timestamp int64      `json:"timestamp"`
}
