package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/celestial"
	"github.com/star/skywatch/internal/dailypath"
	"github.com/star/skywatch/internal/skyerr"
)

// failedHeader lists bodies left out of a partial response.
const failedHeader = "X-Skywatch-Failed-Bodies"

type handlers struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

func (h *handlers) context(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.cfg.Timeout)
}

// dailyObjects returns the solar-system objects for q, from the cache when q
// uses the default observer, otherwise computed on demand. Cached records get
// their visibility reclassified at q.at.
func (h *handlers) dailyObjects(ctx context.Context, q query) (map[string]celestial.CelestialObject, map[string]string, error) {
	if !q.custom && h.deps.Cache != nil {
		if entry := h.deps.Cache.Get(q.at); entry != nil {
			live, err := h.deps.Assembler.Realtime(ctx, q.obs, body.SolarSystem(), q.at)
			if err != nil {
				h.logger.Warn("visibility refresh failed, serving cached visibility", "error", err)
				return entry.Objects, entry.Failed, nil
			}
			return celestial.RefreshVisibility(entry.Objects, live), entry.Failed, nil
		}
	}

	results := h.deps.Assembler.ComputeAll(ctx, q.obs, body.SolarSystem(), q.at)
	objects, failed := celestial.Collect(results)
	if len(objects) == 0 {
		for _, res := range results {
			if res.Err != nil {
				return nil, nil, res.Err
			}
		}
	}
	return objects, failed, nil
}

func setFailed(w http.ResponseWriter, failed map[string]string) {
	if len(failed) == 0 {
		return
	}
	names := make([]string, 0, len(failed))
	for n := range failed {
		names = append(names, n)
	}
	sort.Strings(names)
	w.Header().Set(failedHeader, strings.Join(names, ","))
}

// GET /api/v1/daily-positions?date=2024-06-21&lat=..&lon=..&elevation=..&tz=..
func (h *handlers) dailyPositions(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	objects, failed, err := h.dailyObjects(ctx, q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setFailed(w, failed)
	writeJSON(w, http.StatusOK, objects)
}

// GET /api/v1/realtime-positions?bodies=Moon,Mars
func (h *handlers) realtimePositions(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bodies, err := parseBodies(r.URL.Query().Get("bodies"), h.deps.Registry, []body.Body{body.Moon{}})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	live, err := h.deps.Assembler.Realtime(ctx, q.obs, bodies, q.at)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, live)
}

// GET /api/v1/celestial-data
// Daily objects with the live position merged into each daily path.
func (h *handlers) celestialData(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	var (
		objects map[string]celestial.CelestialObject
		failed  map[string]string
		live    map[string]dailypath.Position
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		objects, failed, err = h.dailyObjects(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		live, err = h.deps.Assembler.Realtime(gctx, q.obs, body.SolarSystem(), q.at)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, err)
		return
	}

	setFailed(w, failed)
	writeJSON(w, http.StatusOK, celestial.MergeRealtime(objects, live))
}

// GET /api/v1/objects/{name}
func (h *handlers) object(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	b, err := h.deps.Registry.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	q, err := h.parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	if !q.custom && h.deps.Cache != nil {
		if entry := h.deps.Cache.Get(q.at); entry != nil {
			if obj, ok := entry.Objects[b.Name()]; ok {
				live, err := h.deps.Assembler.Realtime(ctx, q.obs, []body.Body{b}, q.at)
				if err == nil {
					obj = celestial.RefreshVisibility(map[string]celestial.CelestialObject{obj.Name: obj}, live)[obj.Name]
				}
				writeJSON(w, http.StatusOK, obj)
				return
			}
		}
	}

	obj, err := h.deps.Assembler.Compute(ctx, q.obs, b, q.at)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// GET /api/v1/stars?max_magnitude=3
func (h *handlers) stars(w http.ResponseWriter, r *http.Request) {
	if h.deps.Stars == nil || h.deps.Catalog == nil || h.deps.Catalog.Get() == nil {
		writeError(w, http.StatusServiceUnavailable, "star catalog not loaded")
		return
	}
	q, err := h.parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := parseMagnitude(r.URL.Query().Get("max_magnitude"), h.cfg.MaxMagnitude)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	field := h.deps.Stars.Evaluate(ctx, q.obs, h.deps.Catalog.Get().Brighter(limit), q.at)
	if field.Evaluated > 0 && field.Failed == field.Evaluated {
		err := ctx.Err()
		if err == nil {
			err = errors.New("every star failed")
		}
		h.fail(w, r, skyerr.Unavailable(err))
		return
	}
	writeJSON(w, http.StatusOK, field)
}

// GET /api/v1/cache/stats
func (h *handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache disabled")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Cache.Stats())
}
