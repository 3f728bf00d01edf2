package runtime

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	docker "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	workDir       = "/app"
	inputFilePath = "/app/input.txt"
	memoryLimitMB = 256
)

// containerSpec describes how one language runs inside a container.
type containerSpec struct {
	image    string
	file     string
	runCmd   string // executed via /bin/sh -c, stdin wired from inputFilePath
}

var containerSpecs = map[Language]containerSpec{
	Python:     {image: "python:3.12-slim", file: "/app/main.py", runCmd: "python /app/main.py"},
	JavaScript: {image: "node:20-slim", file: "/app/main.js", runCmd: "node /app/main.js"},
	TypeScript: {image: "denoland/deno:alpine", file: "/app/main.ts", runCmd: "deno run /app/main.ts"},
	Ruby:       {image: "ruby:3.3-slim", file: "/app/main.rb", runCmd: "ruby /app/main.rb"},
	Go:         {image: "golang:1.24", file: "/app/main.go", runCmd: "cd /app && go run main.go"},
	Java:       {image: "eclipse-temurin:21", file: "/app/Main.java", runCmd: "cd /app && javac Main.java && java Main"},
	CPP:        {image: "gcc:latest", file: "/app/main.cpp", runCmd: "g++ /app/main.cpp -o /app/a.out && /app/a.out"},
	CSharp:     {image: "mono:latest", file: "/app/main.cs", runCmd: "cd /app && mcs main.cs -out:main.exe && mono main.exe"},
}

// ContainerBackend runs a job in a throwaway container: copy the source in,
// start, wait, demux the log stream, remove. Network is disabled and memory
// capped; wall-clock bounding comes from the caller's context.
type ContainerBackend struct {
	client *docker.Client
}

func NewContainerBackend(cli *docker.Client) *ContainerBackend {
	return &ContainerBackend{client: cli}
}

func (b *ContainerBackend) ID() BackendID { return BackendContainer }

func (b *ContainerBackend) Available(ctx context.Context) bool {
	if b.client == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := b.client.Ping(probeCtx)
	return err == nil
}

func (b *ContainerBackend) Run(ctx context.Context, req RunRequest) (ExecutionResult, error) {
	spec, ok := containerSpecs[req.Language]
	if !ok {
		return ExecutionResult{}, fmt.Errorf("%w: no container image for %q", ErrUnsupportedLanguage, req.Language)
	}

	cmd := spec.runCmd
	if req.Input != "" {
		cmd = fmt.Sprintf("%s < %s", cmd, inputFilePath)
	}

	resp, err := b.client.ContainerCreate(
		ctx,
		&container.Config{
			Image:      spec.image,
			Cmd:        []string{"/bin/sh", "-c", cmd},
			WorkingDir: workDir,
		},
		&container.HostConfig{
			NetworkMode: "none",
			Resources: container.Resources{
				Memory: memoryLimitMB * 1024 * 1024,
			},
		},
		nil,
		nil,
		"",
	)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("create container: %w", err)
	}
	defer b.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})

	if err := b.copyFile(ctx, resp.ID, spec.file, 0644, []byte(req.Code)); err != nil {
		return ExecutionResult{}, fmt.Errorf("copy source to container: %w", err)
	}
	if req.Input != "" {
		if err := b.copyFile(ctx, resp.ID, inputFilePath, 0644, []byte(req.Input)); err != nil {
			return ExecutionResult{}, fmt.Errorf("copy input to container: %w", err)
		}
	}

	started := time.Now()
	if err := b.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return ExecutionResult{}, fmt.Errorf("start container: %w", err)
	}

	statusCh, errCh := b.client.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case err := <-errCh:
		return ExecutionResult{}, fmt.Errorf("wait for container: %w", err)
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	case <-ctx.Done():
		return ExecutionResult{}, ctx.Err()
	}
	elapsed := time.Since(started)

	stdout, stderr, err := b.readLogs(ctx, resp.ID)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("read container logs: %w", err)
	}

	return ExecutionResult{
		Success:         exitCode == 0,
		Stdout:          stdout,
		Stderr:          stderr,
		ExitCode:        &exitCode,
		ExecutionTimeMs: elapsed.Milliseconds(),
		RuntimeUsed:     BackendContainer,
	}, nil
}

func (b *ContainerBackend) copyFile(ctx context.Context, id, path string, mode int64, data []byte) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name: path,
		Mode: mode,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := tw.Write(data); err != nil {
		return err
	}
	tw.Close()

	return b.client.CopyToContainer(ctx, id, "/", &buf, container.CopyToContainerOptions{})
}

func (b *ContainerBackend) readLogs(ctx context.Context, id string) (string, string, error) {
	reader, err := b.client.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", err
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return "", "", err
	}
	return stdout.String(), stderr.String(), nil
}
