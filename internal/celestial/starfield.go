package celestial

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/catalog"
	"github.com/star/skywatch/internal/ephemeris"
	"github.com/star/skywatch/internal/observer"
	"github.com/star/skywatch/internal/visibility"
)

// VisibleStar is a catalog star above the horizon.
type VisibleStar struct {
	HIP           int                   `json:"hip"`
	Name          string                `json:"name"`
	Magnitude     float64               `json:"magnitude"`
	Constellation string                `json:"constellation"`
	Altitude      float64               `json:"altitude"`
	Azimuth       float64               `json:"azimuth"`
	Visibility    visibility.Visibility `json:"visibility"`
}

// ConstellationLine joins two visible stars of a stick figure.
type ConstellationLine struct {
	Constellation string `json:"constellation"`
	From          string `json:"from"`
	To            string `json:"to"`
}

// StarField is the visible part of the catalog at one instant.
type StarField struct {
	Time      time.Time           `json:"time"`
	Stars     []VisibleStar       `json:"stars"`
	Lines     []ConstellationLine `json:"lines"`
	Evaluated int                 `json:"evaluated"`
	Failed    int                 `json:"failed"`
}

// starJob is a unit of work for the star pool.
type starJob struct {
	star catalog.Star
}

// starResult is the output of a single star evaluation.
type starResult struct {
	star catalog.Star
	pos  ephemeris.Horizontal
	err  error
}

// StarPool evaluates catalog stars with a fixed number of goroutines.
type StarPool struct {
	provider ephemeris.Provider
	workers  int
	logger   *slog.Logger
}

// NewStarPool creates a pool with the given number of workers (at least one).
func NewStarPool(provider ephemeris.Provider, workers int, logger *slog.Logger) *StarPool {
	if workers < 1 {
		workers = 1
	}
	return &StarPool{provider: provider, workers: workers, logger: logger}
}

// Evaluate places every star for obs at `at` and returns those above the
// horizon, brightest first, with the constellation lines they complete.
// Stars that fail are logged and counted.
func (p *StarPool) Evaluate(ctx context.Context, obs observer.Observer, stars []catalog.Star, at time.Time) StarField {
	field := StarField{Time: at, Stars: []VisibleStar{}, Lines: []ConstellationLine{}}
	if len(stars) == 0 {
		return field
	}

	jobs := make(chan starJob, p.workers*2)
	results := make(chan starResult, p.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				pos, err := p.provider.PositionAt(ctx, obs, body.Star{Entry: job.star}, at)
				select {
				case results <- starResult{star: job.star, pos: pos, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, s := range stars {
			select {
			case jobs <- starJob{star: s}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var visible []catalog.Star
	for r := range results {
		field.Evaluated++
		if r.err != nil {
			field.Failed++
			p.logger.Warn("star evaluation failed", "star", r.star.Name, "hip", r.star.HIP, "error", r.err)
			continue
		}
		if r.pos.AltitudeDeg <= 0 {
			continue
		}
		visible = append(visible, r.star)
		field.Stars = append(field.Stars, VisibleStar{
			HIP:           r.star.HIP,
			Name:          r.star.Name,
			Magnitude:     r.star.Magnitude,
			Constellation: r.star.Constellation,
			Altitude:      r.pos.AltitudeDeg,
			Azimuth:       r.pos.AzimuthDeg,
			Visibility:    visibility.Classify(r.pos.AltitudeDeg),
		})
	}

	// Results arrive in completion order.
	order := make([]int, len(visible))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := field.Stars[order[a]], field.Stars[order[b]]
		if sa.Magnitude != sb.Magnitude {
			return sa.Magnitude < sb.Magnitude
		}
		return sa.HIP < sb.HIP
	})
	sortedStars := make([]VisibleStar, len(order))
	sortedCatalog := make([]catalog.Star, len(order))
	for i, k := range order {
		sortedStars[i] = field.Stars[k]
		sortedCatalog[i] = visible[k]
	}
	field.Stars = sortedStars

	for _, fig := range catalog.Figures {
		for _, seg := range fig.Resolve(sortedCatalog) {
			field.Lines = append(field.Lines, ConstellationLine{
				Constellation: fig.Constellation,
				From:          sortedCatalog[seg[0]].Name,
				To:            sortedCatalog[seg[1]].Name,
			})
		}
	}

	return field
}
