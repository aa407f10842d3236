package vector

import "github.com/google/uuid"

// pointNamespace scopes point ids so they never collide with ids minted by
// other tools writing to the same Qdrant instance.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("hybridrag:vector-point"))

// PointID returns the deterministic UUIDv5 used as the point id for a record.
// Re-ingesting a record overwrites its point instead of adding a new one.
func PointID(recordID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(recordID)).String()
}
