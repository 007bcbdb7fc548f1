package apitypes

import "time"

// Container is an isolation namespace: agents spawned in a container share
// its sandbox (workspace path, tool permissions). Containers do not persist
// beyond process lifetime unless the bound repository is durable.
type Container struct {
	ContainerID string    `json:"containerId"`
	CreatedAt   time.Time `json:"createdAt"`
}
