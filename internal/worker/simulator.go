package worker

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ecopulse/ecopulse/internal/report"
	"github.com/ecopulse/ecopulse/internal/sensor"
)

// Publisher sends one encoded reading.
type Publisher interface {
	Publish(ctx context.Context, sensorID string, data []byte) error
}

// SimulatorConfig holds configuration for the Simulator.
type SimulatorConfig struct {
	// Sites are the simulated sensor clusters. Defaults to DefaultSites.
	Sites []Site

	// Interval between rounds (default: 1 minute).
	Interval time.Duration

	// Concurrency bounds parallel publishes (default: 4).
	Concurrency int

	// Seed makes the generated values reproducible.
	Seed int64

	Publisher Publisher
	Logger    zerolog.Logger

	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// RoundResult is the outcome of one publishing round.
type RoundResult struct {
	Published int
	Failed    int
	Duration  time.Duration
}

// Simulator publishes a reading for every simulated sensor on each round.
type Simulator struct {
	config SimulatorConfig
	logger zerolog.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	bases map[string]float64
}

// NewSimulator creates a Simulator.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if len(cfg.Sites) == 0 {
		cfg.Sites = DefaultSites()
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	sites := append([]Site(nil), cfg.Sites...)
	sort.SliceStable(sites, func(i, j int) bool { return sites[i].Priority < sites[j].Priority })
	cfg.Sites = sites

	return &Simulator{
		config: cfg,
		logger: cfg.Logger.With().Str("component", "simulator").Logger(),
		rng:    rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // simulation, not security
		bases:  make(map[string]float64),
	}
}

// Serve publishes a round immediately and then on every interval until ctx ends.
func (s *Simulator) Serve(ctx context.Context) error {
	s.logger.Info().
		Int("sensors", CountSensors(s.config.Sites)).
		Dur("interval", s.config.Interval).
		Msg("simulator started")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		s.RunRound(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// String names the service in supervisor logs.
func (s *Simulator) String() string {
	return "simulator"
}

type simulated struct {
	sensorID string
	data     []byte
}

// RunRound generates and publishes one reading per sensor.
func (s *Simulator) RunRound(ctx context.Context) RoundResult {
	start := time.Now()
	batch, err := s.generate(s.config.Now().UTC().Truncate(time.Second))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode simulated readings")
		return RoundResult{Failed: CountSensors(s.config.Sites)}
	}

	var published, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for _, item := range batch {
		g.Go(func() error {
			if err := s.config.Publisher.Publish(gctx, item.sensorID, item.data); err != nil {
				failed.Add(1)
				s.logger.Warn().Err(err).Str("sensor_id", item.sensorID).Msg("publish failed")
				return nil
			}
			published.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result := RoundResult{
		Published: int(published.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(start),
	}
	s.logger.Debug().
		Int("published", result.Published).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("simulation round completed")
	return result
}

func (s *Simulator) generate(ts time.Time) ([]simulated, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []simulated
	for _, site := range s.config.Sites {
		for i, p := range site.Points {
			id := site.SensorID(i)
			base, ok := s.bases[id]
			if !ok {
				base = 25 + s.rng.Float64()*75
				s.bases[id] = base
			}

			loc := sensor.Location{Latitude: p.Lat, Longitude: p.Lon, Address: site.Name}
			reading := report.SimulateReading(s.rng, id, loc, base, ts)
			data, err := json.Marshal(reading)
			if err != nil {
				return nil, fmt.Errorf("encoding reading for %s: %w", id, err)
			}
			out = append(out, simulated{sensorID: id, data: data})
		}
	}
	return out, nil
}
