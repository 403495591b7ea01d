package dailypath

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/ephemeris"
	"github.com/star/skywatch/internal/observer"
	"github.com/star/skywatch/internal/skyerr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// scriptedProvider answers from plain functions and records rise queries.
type scriptedProvider struct {
	alt     func(t time.Time) float64
	posErr  func(t time.Time) error
	rising  func(after time.Time) (time.Time, error)
	setting func(after time.Time) (time.Time, error)

	mu          sync.Mutex
	riseAnchors []time.Time
	positions   int
}

func (p *scriptedProvider) PositionAt(_ context.Context, _ observer.Observer, _ body.Body, t time.Time) (ephemeris.Horizontal, error) {
	p.mu.Lock()
	p.positions++
	p.mu.Unlock()
	if p.posErr != nil {
		if err := p.posErr(t); err != nil {
			return ephemeris.Horizontal{}, err
		}
	}
	return ephemeris.Horizontal{AltitudeDeg: p.alt(t), AzimuthDeg: 180}, nil
}

func (p *scriptedProvider) NextRising(_ context.Context, _ observer.Observer, _ body.Body, after time.Time) (time.Time, error) {
	p.mu.Lock()
	p.riseAnchors = append(p.riseAnchors, after)
	p.mu.Unlock()
	return p.rising(after)
}

func (p *scriptedProvider) NextSetting(_ context.Context, _ observer.Observer, _ body.Body, after time.Time) (time.Time, error) {
	return p.setting(after)
}

var day = time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)

func utcObserver(t *testing.T) observer.Observer {
	t.Helper()
	obs, err := observer.New(observer.Config{Latitude: 10, Longitude: 20, Timezone: "UTC"})
	if err != nil {
		t.Fatal(err)
	}
	return obs
}

func newSampler(t *testing.T, p ephemeris.Provider, cfg Config) *Sampler {
	t.Helper()
	s, err := NewSampler(p, cfg, testLogger())
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	return s
}

func checkInvariants(t *testing.T, path Path, filtered bool) {
	t.Helper()
	for i, p := range path {
		if filtered && (p.Altitude <= 0 || p.Altitude > 90) {
			t.Errorf("path[%d] altitude %v outside (0, 90]", i, p.Altitude)
		}
		if p.Azimuth < 0 || p.Azimuth >= 360 {
			t.Errorf("path[%d] azimuth %v outside [0, 360)", i, p.Azimuth)
		}
		if i > 0 && !path[i-1].Time.Before(p.Time) {
			t.Errorf("path not strictly ascending at %d: %v then %v", i, path[i-1].Time, p.Time)
		}
	}
}

// upBetween models a body above the horizon when the hour of day is in
// [from, to) (wrapping past midnight when from > to).
func upBetween(from, to int) func(time.Time) float64 {
	return func(t time.Time) float64 {
		h := t.Hour()
		up := h >= from && h < to
		if from > to {
			up = h >= from || h < to
		}
		if up {
			return 30
		}
		return -30
	}
}

func TestSampleSunScenario(t *testing.T) {
	obs := observer.Default()
	s := newSampler(t, ephemeris.NewCalculator(ephemeris.Config{}), DefaultConfig())

	d := time.Date(2024, 6, 21, 0, 0, 0, 0, obs.Location())
	path, err := s.Sample(context.Background(), obs, body.Sun{}, d)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) == 0 || len(path) >= 48 {
		t.Fatalf("got %d samples, want a non-empty subset of the day", len(path))
	}
	checkInvariants(t, path, true)

	first := path[0].Time.In(obs.Location())
	if first.Hour() < 5 || first.Hour() > 7 {
		t.Errorf("first sample at %v, want shortly after sunrise", first)
	}
	for _, p := range path {
		if !obs.StartOfDay(p.Time).Equal(d) {
			t.Errorf("sample %v outside the requested day", p.Time)
		}
	}

	maxAlt := 0.0
	for _, p := range path {
		maxAlt = math.Max(maxAlt, p.Altitude)
	}
	want := 90 - obs.Latitude() + 23.44
	if math.Abs(maxAlt-want) > 1.5 {
		t.Errorf("max altitude %.2f, want near %.2f", maxAlt, want)
	}
}

func TestSampleReanchor(t *testing.T) {
	// Body up from 20:00 to 06:00: at midnight the next rise (20:00 today)
	// comes after the next set (06:00 today).
	p := &scriptedProvider{
		alt: upBetween(20, 6),
		rising: func(after time.Time) (time.Time, error) {
			return time.Date(after.Year(), after.Month(), after.Day(), 20, 0, 0, 0, time.UTC), nil
		},
		setting: func(after time.Time) (time.Time, error) {
			return time.Date(after.Year(), after.Month(), after.Day(), 6, 0, 0, 0, time.UTC), nil
		},
	}
	s := newSampler(t, p, DefaultConfig())

	path, err := s.Sample(context.Background(), utcObserver(t), body.Moon{}, day.Add(13*time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if len(p.riseAnchors) != 2 || !p.riseAnchors[1].Equal(day.Add(-24*time.Hour)) {
		t.Fatalf("rise anchors = %v, want midnight then midnight-24h", p.riseAnchors)
	}
	// Window [19, 31] folds to hours 19-23 and 0-7: 13 hours x 2 samples,
	// plus the midnight reference.
	if p.positions != 1+26 {
		t.Errorf("provider evaluated %d positions, want 27", p.positions)
	}
	// Retained: hours 0-5 and 20-23.
	if len(path) != 20 {
		t.Errorf("got %d samples, want 20", len(path))
	}
	checkInvariants(t, path, true)
	if !path[0].Time.Equal(day) {
		t.Errorf("first sample %v, want %v", path[0].Time, day)
	}
	if last := path[len(path)-1].Time; !last.Equal(day.Add(23*time.Hour + 30*time.Minute)) {
		t.Errorf("last sample %v, want 23:30", last)
	}
}

func TestSampleReanchorIndeterminate(t *testing.T) {
	// The re-anchored rise still does not precede the set: full day.
	p := &scriptedProvider{
		alt: func(time.Time) float64 { return 5 },
		rising: func(time.Time) (time.Time, error) {
			return day.Add(20 * time.Hour), nil
		},
		setting: func(time.Time) (time.Time, error) {
			return day.Add(6 * time.Hour), nil
		},
	}
	path, err := newSampler(t, p, DefaultConfig()).Sample(context.Background(), utcObserver(t), body.Moon{}, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 48 {
		t.Errorf("got %d samples, want full day of 48", len(path))
	}
}

func TestSampleFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		alt     func(time.Time) float64
		riseErr error
		posErr  func(time.Time) error
		want    int
	}{
		{
			name:    "always up",
			alt:     func(time.Time) float64 { return 40 },
			riseErr: &skyerr.CircumpolarError{Body: "X", Condition: skyerr.AlwaysUp},
			want:    48,
		},
		{
			name:    "never up",
			alt:     func(time.Time) float64 { return -40 },
			riseErr: &skyerr.CircumpolarError{Body: "X", Condition: skyerr.NeverUp},
			want:    0,
		},
		{
			name:    "rise query fails",
			alt:     upBetween(6, 18),
			riseErr: skyerr.Unavailable(errors.New("timeout")),
			want:    24,
		},
		{
			name: "reference position fails",
			alt:  upBetween(6, 18),
			posErr: func(t time.Time) error {
				if t.Equal(day) {
					return errors.New("glitch")
				}
				return nil
			},
			want: 24,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{
				alt:    tt.alt,
				posErr: tt.posErr,
				rising: func(time.Time) (time.Time, error) {
					if tt.riseErr != nil {
						return time.Time{}, tt.riseErr
					}
					return day.Add(6 * time.Hour), nil
				},
				setting: func(time.Time) (time.Time, error) {
					if tt.riseErr != nil {
						return time.Time{}, tt.riseErr
					}
					return day.Add(18 * time.Hour), nil
				},
			}
			path, err := newSampler(t, p, DefaultConfig()).Sample(context.Background(), utcObserver(t), body.Sun{}, day)
			if err != nil {
				t.Fatalf("circumpolar and rise/set failures must not surface: %v", err)
			}
			if len(path) != tt.want {
				t.Errorf("got %d samples, want %d", len(path), tt.want)
			}
			if tt.posErr == nil && p.positions != 1+48 {
				t.Errorf("evaluated %d positions, want full day plus reference", p.positions)
			}
			checkInvariants(t, path, true)
		})
	}
}

func TestSampleWindowed(t *testing.T) {
	p := &scriptedProvider{
		alt:     upBetween(6, 18),
		rising:  func(time.Time) (time.Time, error) { return day.Add(6*time.Hour + 10*time.Minute), nil },
		setting: func(time.Time) (time.Time, error) { return day.Add(17*time.Hour + 50*time.Minute), nil },
	}
	path, err := newSampler(t, p, DefaultConfig()).Sample(context.Background(), utcObserver(t), body.Sun{}, day)
	if err != nil {
		t.Fatal(err)
	}
	// Window hours 5-18 are evaluated; 6:00-17:30 are above the horizon.
	if p.positions != 1+28 {
		t.Errorf("evaluated %d positions, want 29", p.positions)
	}
	if len(path) != 24 {
		t.Errorf("got %d samples, want 24", len(path))
	}
	checkInvariants(t, path, true)
}

func TestSampleSkipsFailedSamples(t *testing.T) {
	p := &scriptedProvider{
		alt: func(time.Time) float64 { return 20 },
		posErr: func(t time.Time) error {
			if t.Hour() == 12 {
				return &skyerr.CircumpolarError{Body: "X", Condition: skyerr.AlwaysUp}
			}
			if t.Hour() == 13 {
				return skyerr.Unavailable(context.DeadlineExceeded)
			}
			return nil
		},
		rising:  func(time.Time) (time.Time, error) { return time.Time{}, &skyerr.CircumpolarError{Condition: skyerr.AlwaysUp} },
		setting: func(time.Time) (time.Time, error) { return time.Time{}, nil },
	}
	path, err := newSampler(t, p, DefaultConfig()).Sample(context.Background(), utcObserver(t), body.Moon{}, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 44 {
		t.Errorf("got %d samples, want 44", len(path))
	}
	for _, pos := range path {
		if h := pos.Time.Hour(); h == 12 || h == 13 {
			t.Errorf("failed sample at %v should be skipped", pos.Time)
		}
	}
}

func TestSampleErrors(t *testing.T) {
	never := func(time.Time) (time.Time, error) { return time.Time{}, &skyerr.CircumpolarError{Condition: skyerr.NeverUp} }

	t.Run("all unavailable", func(t *testing.T) {
		p := &scriptedProvider{
			alt:     func(time.Time) float64 { return 1 },
			posErr:  func(time.Time) error { return skyerr.Unavailable(errors.New("down")) },
			rising:  never,
			setting: never,
		}
		_, err := newSampler(t, p, DefaultConfig()).Sample(context.Background(), utcObserver(t), body.Sun{}, day)
		if !errors.Is(err, skyerr.ErrProviderUnavailable) {
			t.Errorf("err = %v, want ErrProviderUnavailable", err)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		p := &scriptedProvider{
			alt:     func(time.Time) float64 { return 1 },
			posErr:  func(time.Time) error { return skyerr.Invalid("unknown body") },
			rising:  never,
			setting: never,
		}
		_, err := newSampler(t, p, DefaultConfig()).Sample(context.Background(), utcObserver(t), body.Sun{}, day)
		if !errors.Is(err, skyerr.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("nil body", func(t *testing.T) {
		p := &scriptedProvider{alt: func(time.Time) float64 { return 1 }, rising: never, setting: never}
		_, err := newSampler(t, p, DefaultConfig()).Sample(context.Background(), utcObserver(t), nil, day)
		if !errors.Is(err, skyerr.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("cancelled context with real calculator", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := newSampler(t, ephemeris.NewCalculator(ephemeris.Config{}), DefaultConfig())
		_, err := s.Sample(ctx, observer.Default(), body.Moon{}, day)
		if !errors.Is(err, skyerr.ErrProviderUnavailable) {
			t.Errorf("err = %v, want ErrProviderUnavailable", err)
		}
	})
}

func TestSampleBelowAllDay(t *testing.T) {
	p := &scriptedProvider{
		alt:     func(time.Time) float64 { return -10 },
		rising:  func(time.Time) (time.Time, error) { return day.Add(26 * time.Hour), nil },
		setting: func(time.Time) (time.Time, error) { return day.Add(30 * time.Hour), nil },
	}
	path, err := newSampler(t, p, DefaultConfig()).Sample(context.Background(), utcObserver(t), body.Moon{}, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 0 {
		t.Errorf("got %d samples, want none", len(path))
	}
	if p.positions != 1 {
		t.Errorf("evaluated %d positions, want only the reference", p.positions)
	}
}

func TestSampleFullDayPolicy(t *testing.T) {
	p := &scriptedProvider{
		alt:     upBetween(6, 18),
		rising:  func(time.Time) (time.Time, error) { t.Fatal("full-day policy should not query rise"); return time.Time{}, nil },
		setting: func(time.Time) (time.Time, error) { t.Fatal("full-day policy should not query set"); return time.Time{}, nil },
	}
	cfg := DefaultConfig()
	cfg.Policy = PolicyFullDay
	cfg.GranularityMinutes = 15
	path, err := newSampler(t, p, cfg).Sample(context.Background(), utcObserver(t), body.Sun{}, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 96 {
		t.Errorf("got %d samples, want 96", len(path))
	}
	checkInvariants(t, path, false)
}

func TestSampleDSTGap(t *testing.T) {
	obs, err := observer.New(observer.Config{Latitude: 43, Longitude: -80, Timezone: "America/Toronto"})
	if err != nil {
		t.Fatal(err)
	}
	p := &scriptedProvider{
		alt:     func(time.Time) float64 { return 10 },
		rising:  func(time.Time) (time.Time, error) { return time.Time{}, &skyerr.CircumpolarError{Condition: skyerr.AlwaysUp} },
		setting: func(time.Time) (time.Time, error) { return time.Time{}, nil },
	}
	// 2024-03-10 has no 02:00-02:59 in Toronto.
	path, err := newSampler(t, p, DefaultConfig()).Sample(context.Background(), obs, body.Sun{}, time.Date(2024, 3, 10, 12, 0, 0, 0, obs.Location()))
	if err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, path, true)
	if len(path) != 46 {
		t.Errorf("got %d samples, want 46 on a 23-hour day", len(path))
	}
}

func TestNewSamplerValidation(t *testing.T) {
	p := &scriptedProvider{}
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"default", DefaultConfig(), true},
		{"fifteen minutes", Config{GranularityMinutes: 15, MarginHours: 1}, true},
		{"hourly no margin", Config{GranularityMinutes: 60}, true},
		{"zero granularity", Config{GranularityMinutes: 0, MarginHours: 1}, false},
		{"non divisor", Config{GranularityMinutes: 7, MarginHours: 1}, false},
		{"too coarse", Config{GranularityMinutes: 120, MarginHours: 1}, false},
		{"negative margin", Config{GranularityMinutes: 30, MarginHours: -1}, false},
		{"unknown policy", Config{GranularityMinutes: 30, MarginHours: 1, Policy: 7}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSampler(p, tt.cfg, testLogger())
			if (err == nil) != tt.ok {
				t.Errorf("NewSampler err = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, skyerr.ErrInvalidInput) {
				t.Errorf("config error should wrap ErrInvalidInput: %v", err)
			}
		})
	}
}

func TestHourWindow(t *testing.T) {
	at := func(d, h, m int) time.Time { return time.Date(2024, 6, d, h, m, 0, 0, time.UTC) }
	tests := []struct {
		name      string
		rise, set time.Time
		margin    int
		want      []int
	}{
		{"daytime", at(21, 6, 10), at(21, 17, 50), 1, []int{5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18}},
		{"clamped start", at(21, 0, 30), at(21, 3, 0), 1, []int{0, 1, 2, 3, 4}},
		{"clamped end", at(21, 20, 0), at(21, 23, 40), 1, []int{19, 20, 21, 22, 23}},
		{"wraps past midnight", at(20, 20, 0), at(21, 6, 0), 1, []int{19, 20, 21, 22, 23, 0, 1, 2, 3, 4, 5, 6, 7}},
		{"wider margin", at(21, 10, 0), at(21, 12, 0), 2, []int{8, 9, 10, 11, 12, 13, 14}},
		{"overlapping wrap collapses", at(20, 8, 0), at(21, 7, 0), 1, fullDay()},
		{"up more than a day", at(21, 2, 0), at(22, 3, 0), 1, fullDay()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hourWindow(tt.rise, tt.set, tt.margin)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("hourWindow = %v, want %v", got, tt.want)
			}
		})
	}
}

func pos(hour, minute int, alt, az float64) Position {
	return Position{Time: time.Date(2024, 6, 21, hour, minute, 0, 0, time.UTC), Altitude: alt, Azimuth: az}
}

func TestMerge(t *testing.T) {
	base := Path{pos(10, 0, 5, 100), pos(10, 30, 8, 102), pos(11, 0, 10, 104)}

	tests := []struct {
		name   string
		sample Position
		want   Path
	}{
		{"replaces containing slot", pos(10, 45, 9, 103), Path{base[0], pos(10, 45, 9, 103), base[2]}},
		{"first slot", pos(10, 10, 6, 101), Path{pos(10, 10, 6, 101), base[1], base[2]}},
		{"after last", pos(12, 0, 12, 110), Path{base[0], base[1], pos(12, 0, 12, 110)}},
		{"before first is no-op", pos(9, 0, 1, 90), base},
		{"exact timestamp is no-op", pos(10, 30, 50, 50), base},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base.Clone()
			got := Merge(in, tt.sample)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge = %v, want %v", got, tt.want)
			}
			if !reflect.DeepEqual(in, base) {
				t.Error("Merge modified its input")
			}
			if len(got) != len(base) {
				t.Errorf("length changed to %d", len(got))
			}
		})
	}
}

func TestMergeEmpty(t *testing.T) {
	if got := Merge(nil, pos(10, 0, 1, 1)); len(got) != 0 {
		t.Errorf("Merge(nil) = %v, want empty", got)
	}
	if got := Merge(Path{}, pos(10, 0, 1, 1)); len(got) != 0 {
		t.Errorf("Merge(empty) = %v, want empty", got)
	}
}

func TestMergeIdempotentAndOrdered(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := rng.Intn(10)
		var p Path
		for i := 0; i < n; i++ {
			p = append(p, pos(8, 0, 1, 1))
			p[i].Time = p[i].Time.Add(time.Duration(i*30) * time.Minute)
		}
		s := pos(7, 30, 2, 2)
		s.Time = s.Time.Add(time.Duration(rng.Intn(n*30+90)) * time.Minute)

		once := Merge(p, s)
		twice := Merge(once, s)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("trial %d: merge not idempotent: %v vs %v", trial, once, twice)
		}
		if len(once) != len(p) {
			t.Fatalf("trial %d: length %d, want %d", trial, len(once), len(p))
		}
		for i := 1; i < len(once); i++ {
			if !once[i-1].Time.Before(once[i].Time) {
				t.Fatalf("trial %d: merged path not strictly ascending", trial)
			}
		}
	}
}

func TestSortUnique(t *testing.T) {
	p := Path{pos(11, 0, 1, 1), pos(9, 0, 2, 2), pos(11, 0, 3, 3), pos(10, 0, 4, 4)}
	got := sortUnique(p)
	want := Path{pos(9, 0, 2, 2), pos(10, 0, 4, 4), pos(11, 0, 1, 1)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sortUnique = %v, want %v", got, want)
	}
}
