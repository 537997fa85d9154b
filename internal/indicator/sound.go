package indicator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
)

type cueKind int

const (
	cueListening cueKind = iota + 1
	cueSubmitted
	cueComplete
	cueError
)

const (
	cueSampleRate = 16000
	cueGap        = 22 * time.Millisecond
	cueVolume     = 0.18
)

// note is one tone of a cue. A zero volume uses cueVolume.
type note struct {
	hz     float64
	length time.Duration
	volume float64
}

var cueScores = map[cueKind][]note{
	cueListening: {{hz: 880, length: 70 * time.Millisecond}, {hz: 1175, length: 70 * time.Millisecond}},
	cueSubmitted: {{hz: 620, length: 120 * time.Millisecond}},
	cueComplete: {
		{hz: 740, length: 65 * time.Millisecond},
		{hz: 988, length: 90 * time.Millisecond},
		{hz: 1318, length: 110 * time.Millisecond, volume: 0.16},
	},
	cueError: {{hz: 480, length: 75 * time.Millisecond}, {hz: 360, length: 90 * time.Millisecond}},
}

// cuePlayer plays cues one at a time over a single lazily opened Pulse
// client that lives until close.
type cuePlayer struct {
	appName string

	mu      sync.Mutex
	client  *pulse.Client
	pcm     map[cueKind][]int16
	pending sync.WaitGroup
	closed  bool
}

func newCuePlayer(appName string) *cuePlayer {
	pcm := make(map[cueKind][]int16, len(cueScores))
	for kind, score := range cueScores {
		pcm[kind] = renderScore(score)
	}
	return &cuePlayer{appName: appName, pcm: pcm}
}

// playAsync queues kind behind any cue still playing. Failures go to onErr.
func (p *cuePlayer) playAsync(ctx context.Context, kind cueKind, onErr func(error)) {
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		if err := p.play(ctx, kind); err != nil && onErr != nil {
			onErr(err)
		}
	}()
}

func (p *cuePlayer) play(ctx context.Context, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("emit cue: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	samples := p.pcm[kind]
	if len(samples) == 0 || p.closed {
		return nil
	}
	if p.client == nil {
		client, err := pulse.NewClient(
			pulse.ClientApplicationName(p.appName),
			pulse.ClientApplicationIconName("camera-video"),
		)
		if err != nil {
			return fmt.Errorf("connect pulse server: %w", err)
		}
		p.client = client
	}
	return playSamples(p.client, p.appName, samples)
}

// close waits for queued cues and drops the Pulse connection.
func (p *cuePlayer) close() {
	p.pending.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

// pcmCursor feeds a fixed buffer to a playback stream and reports
// EndOfData with the final chunk.
type pcmCursor struct {
	samples []int16
}

func (c *pcmCursor) read(buf []int16) (int, error) {
	n := copy(buf, c.samples)
	c.samples = c.samples[n:]
	if len(c.samples) == 0 {
		return n, pulse.EndOfData
	}
	return n, nil
}

func playSamples(client *pulse.Client, appName string, samples []int16) error {
	cursor := &pcmCursor{samples: samples}
	stream, err := client.NewPlayback(pulse.Int16Reader(cursor.read),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName(appName+" cue"),
	)
	if err != nil {
		return fmt.Errorf("open cue playback: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("cue playback: %w", err)
	}
	return nil
}

// renderScore concatenates the notes of a cue with a short silence between
// them.
func renderScore(score []note) []int16 {
	var pcm []int16
	gap := sampleCount(cueGap)
	for i, n := range score {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, renderNote(n)...)
	}
	return pcm
}

// renderNote synthesizes a sine tone with a linear attack/release ramp of at
// most 5ms to avoid clicks.
func renderNote(n note) []int16 {
	count := sampleCount(n.length)
	volume := n.volume
	if volume == 0 {
		volume = cueVolume
	}
	if count <= 0 || n.hz <= 0 || volume < 0 {
		return nil
	}

	ramp := min(max(count/10, 1), cueSampleRate/200)
	pcm := make([]int16, count)
	for i := range pcm {
		envelope := min(1.0, float64(i)/float64(ramp), float64(count-i-1)/float64(ramp))
		phase := 2 * math.Pi * n.hz * float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(phase) * volume * envelope * math.MaxInt16))
	}
	return pcm
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
