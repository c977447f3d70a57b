package runtime

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// dockerRuntime is the production Runtime backed by the Docker Engine API.
// Demuxing stdout/stderr via stdcopy.StdCopy replaces the hand-rolled
// 8-byte-header parsing an earlier in-house client used; the docker/docker
// SDK already solves this correctly.
type dockerRuntime struct {
	cli *client.Client
}

// NewDocker connects to the local Docker daemon over its default socket,
// negotiating the API version like any other Docker SDK client.
func NewDocker() (Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect docker: %w", err)
	}
	return &dockerRuntime{cli: cli}, nil
}

func (d *dockerRuntime) ListContainers(ctx context.Context) ([]ContainerInfo, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = c.Names[0]
		}
		out = append(out, ContainerInfo{
			ID:            c.ID,
			Name:          name,
			ComposeLabel:  c.Labels["com.docker.compose.service"],
			StartedAtUnix: c.Created,
		})
	}
	return out, nil
}

func (d *dockerRuntime) StreamLogs(ctx context.Context, containerID string, since string) (io.ReadCloser, error) {
	opts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Timestamps: true,
		Since:      since,
	}
	raw, err := d.cli.ContainerLogs(ctx, containerID, opts)
	if err != nil {
		return nil, fmt.Errorf("container logs: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		_, copyErr := stdcopy.StdCopy(pw, pw, raw)
		raw.Close()
		pw.CloseWithError(copyErr)
	}()
	return &demuxedStream{PipeReader: pr, raw: raw}, nil
}

// demuxedStream closes both the demux pipe and the underlying Docker log
// stream so a caller cancelling mid-stream unblocks the copy goroutine.
type demuxedStream struct {
	*io.PipeReader
	raw io.Closer
}

func (s *demuxedStream) Close() error {
	_ = s.raw.Close()
	return s.PipeReader.Close()
}
