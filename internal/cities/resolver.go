package cities

import (
	"errors"
	"log/slog"
	"strings"
)

var ErrNotFound = errors.New("city not found in directory")

type MatchReason string

const (
	ReasonExact    MatchReason = "EXACT"
	ReasonAlias    MatchReason = "ALIAS"
	ReasonContains MatchReason = "CONTAINS"
)

type Resolution struct {
	City   City
	Reason MatchReason
}

// Resolver maps labels to directory entries: exact lookup, then the alias
// table, then substring containment in directory order.
type Resolver struct {
	dir    *Directory
	logger *slog.Logger
}

func NewResolver(dir *Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{dir: dir, logger: logger}
}

func (r *Resolver) Directory() *Directory { return r.dir }

// Resolve normalizes a raw label and resolves it. A miss is logged as a
// warning and reported with ErrNotFound.
func (r *Resolver) Resolve(raw string) (Resolution, error) {
	name := Normalize(raw)
	res, ok := r.lookup(name)
	if !ok {
		r.logger.Warn("city not found in directory", "label", raw, "normalized", name)
		return Resolution{}, ErrNotFound
	}
	if res.Reason == ReasonContains {
		r.logger.Debug("city resolved by containment", "label", raw, "city", res.City.Name)
	}
	return res, nil
}

// ResolveCode returns the stable code for an already-normalized name.
func (r *Resolver) ResolveCode(canonicalName string) (string, error) {
	res, err := r.Resolve(canonicalName)
	if err != nil {
		return "", err
	}
	return res.City.Code, nil
}

func (r *Resolver) lookup(name string) (Resolution, bool) {
	if name == "" {
		return Resolution{}, false
	}
	if c, ok := r.dir.byName[name]; ok {
		return Resolution{City: c, Reason: ReasonExact}, true
	}
	if target, ok := r.dir.aliases[name]; ok {
		return Resolution{City: r.dir.byName[target], Reason: ReasonAlias}, true
	}
	if c, ok := containmentMatch(r.dir.cities, name); ok {
		return Resolution{City: c, Reason: ReasonContains}, true
	}
	return Resolution{}, false
}

// containmentMatch returns the first entry whose name contains or is contained
// in name.
func containmentMatch(entries []City, name string) (City, bool) {
	for _, c := range entries {
		if strings.Contains(c.Name, name) || strings.Contains(name, c.Name) {
			return c, true
		}
	}
	return City{}, false
}
