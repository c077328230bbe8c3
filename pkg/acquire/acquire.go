package acquire

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultBufferSize is the default size for the points channel buffer.
const DefaultBufferSize = 100

// Point is one timestamped measurement.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// Source produces one measurement per call. *hp34401a.Device satisfies it;
// each call blocks for up to the instrument's integration time.
type Source interface {
	Reading() (float64, error)
}

// Converter transforms one stream of points into another.
type Converter func(in <-chan Point) <-chan Point

// Poller reads a Source at a fixed interval and streams the results.
// The source is never read concurrently: the instrument bus carries one
// outstanding exchange at a time.
type Poller struct {
	src      Source
	interval time.Duration
	bufSize  int

	points  chan Point
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewPoller creates a poller reading src every interval.
func NewPoller(src Source, interval time.Duration, bufSize int) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Poller{
		src:      src,
		interval: interval,
		bufSize:  bufSize,
		points:   make(chan Point, bufSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins polling and returns the point channel. The channel closes
// after Stop.
func (p *Poller) Start() <-chan Point {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		p.started = true
		go p.run()
	}
	return p.points
}

// Stop ends polling. Safe to call more than once.
func (p *Poller) Stop() {
	p.cancel()
}

func (p *Poller) run() {
	defer close(p.points)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			v, err := p.src.Reading()
			if err != nil {
				log.Printf("Failed to read measurement: %v", err)
				continue
			}
			select {
			case p.points <- Point{Timestamp: time.Now(), Value: v}:
			case <-p.ctx.Done():
				return
			default:
				log.Printf("Points channel full, dropping point")
			}
		}
	}
}

// NewAveraging creates a converter that emits the moving average of the
// last windowSize points. This reduces noise in slow trend logs.
func NewAveraging(windowSize int, bufSize int) Converter {
	if windowSize <= 0 {
		windowSize = 1
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	return func(in <-chan Point) <-chan Point {
		out := make(chan Point, bufSize)

		go func() {
			defer close(out)

			var window []Point
			for pt := range in {
				window = append(window, pt)
				if len(window) > windowSize {
					window = window[1:]
				}

				select {
				case out <- averagePoints(window):
				default:
					log.Printf("Averaging output channel full, dropping point")
				}
			}
		}()

		return out
	}
}

// averagePoints averages the window values under the latest timestamp.
func averagePoints(window []Point) Point {
	if len(window) == 0 {
		return Point{}
	}

	var sum float64
	for _, pt := range window {
		sum += pt.Value
	}
	return Point{
		Timestamp: window[len(window)-1].Timestamp,
		Value:     sum / float64(len(window)),
	}
}

// NewDecimate creates a converter that keeps every nth point, for long
// logging sessions where the full rate is not needed.
func NewDecimate(n int, bufSize int) Converter {
	if n <= 1 {
		n = 1
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	return func(in <-chan Point) <-chan Point {
		out := make(chan Point, bufSize)

		go func() {
			defer close(out)

			i := 0
			for pt := range in {
				if i%n == 0 {
					select {
					case out <- pt:
					default:
						log.Printf("Decimate output channel full, dropping point")
					}
				}
				i++
			}
		}()

		return out
	}
}
