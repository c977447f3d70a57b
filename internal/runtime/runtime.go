// Package runtime abstracts container discovery and log streaming so the
// ingestion pipeline does not depend on a concrete container engine.
package runtime

import (
	"context"
	"io"
)

// ContainerInfo describes one running container as returned by
// ListContainers.
type ContainerInfo struct {
	ID            string
	Name          string
	ComposeLabel  string
	StartedAtUnix int64
}

// Runtime discovers running containers and streams their combined
// stdout/stderr log output.
type Runtime interface {
	// ListContainers returns every currently running container.
	ListContainers(ctx context.Context) ([]ContainerInfo, error)

	// StreamLogs opens a following, timestamped log stream for containerID
	// starting at since (RFC3339). The returned ReadCloser yields
	// newline-delimited, already-demuxed log lines; the caller must Close
	// it when done.
	StreamLogs(ctx context.Context, containerID string, since string) (io.ReadCloser, error)
}
