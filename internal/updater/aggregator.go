package updater

import (
	"github.com/born-ml/scaleout/internal/optim"
	"github.com/pkg/errors"
)

// Aggregator combines the per-parameter state of many layer updaters, keyed by
// parameter name.
type Aggregator struct {
	names  []string
	byName map[string]optim.Aggregator
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{byName: make(map[string]optim.Aggregator)}
}

// Aggregator returns a new aggregator seeded with u.
func (u *Updater) Aggregator() *Aggregator {
	a := NewAggregator()
	// Seeding an empty aggregator cannot fail.
	_ = a.Aggregate(u)
	return a
}

// Aggregate folds u into the running state. The first updater seen for a
// parameter seeds that parameter's aggregator; later ones are combined with it.
func (a *Aggregator) Aggregate(u *Updater) error {
	for _, name := range u.names {
		gu := u.byName[name]
		ag, ok := a.byName[name]
		if !ok {
			a.put(name, gu.Aggregator())
			continue
		}
		if err := ag.Aggregate(gu); err != nil {
			return errors.Wrapf(err, "parameter %q", name)
		}
	}
	return nil
}

// Merge folds another aggregator into this one. An empty receiver adopts
// other's state; otherwise state is combined per parameter name, and names only
// other knows are adopted. other must not be used afterwards.
func (a *Aggregator) Merge(other *Aggregator) error {
	if other == nil || len(other.names) == 0 {
		return nil
	}
	if len(a.names) == 0 {
		a.names = append([]string(nil), other.names...)
		for name, ag := range other.byName {
			a.byName[name] = ag
		}
		return nil
	}
	for _, name := range other.names {
		second := other.byName[name]
		first, ok := a.byName[name]
		if !ok {
			a.put(name, second)
			continue
		}
		if err := first.Combine(second); err != nil {
			return errors.Wrapf(err, "parameter %q", name)
		}
	}
	return nil
}

func (a *Aggregator) put(name string, ag optim.Aggregator) {
	if _, ok := a.byName[name]; !ok {
		a.names = append(a.names, name)
	}
	a.byName[name] = ag
}

// Len returns the number of parameters aggregated.
func (a *Aggregator) Len() int {
	return len(a.names)
}

// Updater materializes a layer updater from the aggregated state.
func (a *Aggregator) Updater() *Updater {
	u := New()
	for _, name := range a.names {
		u.set(name, a.byName[name].Updater())
	}
	return u
}
