package indicator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/rbright/parley/internal/config"
)

// player runs the configured external video player, one clip at a time.
type player struct {
	argv   []string
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newPlayer(argv []string, logger *slog.Logger) *player {
	return &player{argv: append([]string(nil), argv...), logger: logger}
}

func (p *player) enabled() bool {
	return len(p.argv) > 0
}

// play stops the current clip and starts url. done runs when the process
// exits, including when a later clip replaced it.
func (p *player) play(ctx context.Context, url string, done func()) error {
	if !p.enabled() {
		return errors.New("video player is not configured")
	}
	p.stop()

	playCtx, cancel := context.WithCancel(ctx)
	argv := config.ExpandURL(p.argv, url)
	cmd := exec.CommandContext(playCtx, argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start video player %q: %w", p.argv[0], err)
	}

	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		if err := cmd.Wait(); err != nil && p.logger != nil && playCtx.Err() == nil {
			p.logger.Debug("video player exited with error", "error", err.Error(), "url", url)
		}
		if done != nil {
			done()
		}
	}()
	return nil
}

func (p *player) stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *player) wait() {
	p.wg.Wait()
}
