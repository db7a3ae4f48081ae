package quiethours

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

const (
	FallbackTimezone = "UTC"

	zoneCacheSize = 512
)

// ZoneResolver maps an IANA timezone name to a location.
type ZoneResolver interface {
	Resolve(name string) (*time.Location, error)
}

type ZoneResolverFunc func(name string) (*time.Location, error)

func (f ZoneResolverFunc) Resolve(name string) (*time.Location, error) {
	return f(name)
}

type cachingZoneResolver struct {
	cache *lru.Cache
	load  func(name string) (*time.Location, error)
}

// NewZoneResolver returns a resolver backed by the system timezone database. Loaded
// locations are immutable and are kept in an LRU cache.
func NewZoneResolver() (ZoneResolver, error) {
	cache, err := lru.New(zoneCacheSize)
	if err != nil {
		return nil, fmt.Errorf("unable to create timezone cache: %w", err)
	}
	return &cachingZoneResolver{
		cache: cache,
		load:  time.LoadLocation,
	}, nil
}

func (c *cachingZoneResolver) Resolve(name string) (*time.Location, error) {
	if loc, ok := c.cache.Get(name); ok {
		return loc.(*time.Location), nil
	}

	loc, err := c.load(name)
	if err != nil {
		return nil, err
	}
	c.cache.Add(name, loc)
	return loc, nil
}

type Evaluator struct {
	zones  ZoneResolver
	logger *zap.SugaredLogger
}

func NewEvaluator(zones ZoneResolver, logger *zap.SugaredLogger) *Evaluator {
	return &Evaluator{
		zones:  zones,
		logger: logger,
	}
}

// IsQuiet reports whether now, observed in timezone, falls between the local times of day
// start and end. Any failure to interpret the inputs reports false so notifications are
// never blocked by a configuration or timezone database problem.
func (e *Evaluator) IsQuiet(start, end, timezone string, now time.Time) bool {
	startTime, err := ParseTimeOfDay(start)
	if err != nil {
		e.logger.Errorw("unable to parse quiet hours start", "start", start, zap.Error(err))
		return false
	}
	endTime, err := ParseTimeOfDay(end)
	if err != nil {
		e.logger.Errorw("unable to parse quiet hours end", "end", end, zap.Error(err))
		return false
	}

	loc, err := e.zones.Resolve(timezone)
	if err != nil {
		e.logger.Warnw("unable to resolve timezone, falling back to UTC", "timezone", timezone, zap.Error(err))
		loc, err = e.zones.Resolve(FallbackTimezone)
		if err != nil {
			e.logger.Errorw("unable to resolve fallback timezone, quiet hours are not applied", "timezone", timezone, zap.Error(err))
			return false
		}
	}

	return Contains(startTime, endTime, TimeOfDayOf(now.In(loc)))
}
