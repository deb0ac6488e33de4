package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Pool keeps PoolSize idle containers ready so a request only pays for
// the exec, never for container creation.
type Pool struct {
	cli        *client.Client
	config     Config
	logger     *slog.Logger
	containers chan string
	done       chan struct{}
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
}

// NewPool initializes a new container pool wrapper.
func NewPool(cli *client.Client, cfg Config, logger *slog.Logger) *Pool {
	size := max(cfg.PoolSize, 1)
	return &Pool{
		cli:        cli,
		config:     cfg,
		logger:     logger,
		containers: make(chan string, size),
		done:       make(chan struct{}),
	}
}

// Start begins filling the pool with fresh containers in the background.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting docker container pool manager", slog.Int("poolSize", cap(p.containers)))
		p.wg.Add(1)
		go p.manager()
	})
}

// Stop shuts down the manager and removes all idle containers.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("shutting down docker container pool")
		close(p.done)
		p.wg.Wait()

		for {
			select {
			case id := <-p.containers:
				p.removeContainer(id)
			default:
				return
			}
		}
	})
}

// GetContainer returns a ready-to-use container ID from the pool.
// It blocks until one is available or the context is canceled.
func (p *Pool) GetContainer(ctx context.Context) (string, error) {
	select {
	case id := <-p.containers:
		return id, nil
	case <-p.done:
		return "", fmt.Errorf("container pool is stopped")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// manager keeps the pool at capacity until Stop is called.
func (p *Pool) manager() {
	defer p.wg.Done()

	backoff := time.Second
	for {
		select {
		case <-p.done:
			return
		default:
		}

		if len(p.containers) == cap(p.containers) {
			p.sleep(100 * time.Millisecond)
			continue
		}

		id, err := p.createContainer()
		if err != nil {
			p.logger.Error("failed to create pre-warmed container", slog.String("error", err.Error()))
			p.sleep(backoff)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		select {
		case p.containers <- id:
		case <-p.done:
			p.removeContainer(id)
			return
		}
	}
}

func (p *Pool) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.done:
	}
}

// hostConfig locks the container down: no network, read-only root with a
// small writable /tmp, no capabilities and bounded memory, CPU and pids.
func (p *Pool) hostConfig() *container.HostConfig {
	pids := p.config.PidsLimit
	return &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:     p.config.MemoryLimit,
			MemorySwap: p.config.MemoryLimit,
			NanoCPUs:   int64(p.config.CPULimit * 1e9),
			PidsLimit:  &pids,
		},
		AutoRemove:     false,
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,noexec,nosuid,size=16m"},
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
	}
}

// createContainer starts a container running `sleep infinity`.
func (p *Pool) createContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:           p.config.Image,
		Cmd:             []string{"sleep", "infinity"},
		User:            "nobody",
		WorkingDir:      "/tmp",
		NetworkDisabled: true,
		Labels:          map[string]string{"pygate.pool": "1"},
	}, p.hostConfig(), nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("ContainerCreate failed: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.removeContainer(resp.ID)
		return "", fmt.Errorf("ContainerStart failed: %w", err)
	}

	return resp.ID, nil
}

// removeContainer force removes a container by ID.
func (p *Pool) removeContainer(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Warn("failed to remove pooled container", slog.String("id", shortID(id)), slog.String("error", err.Error()))
	}
}
