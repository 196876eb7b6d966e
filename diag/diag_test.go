package diag_test

import (
	"testing"

	"github.com/gocrud/injectgen/diag"
	"github.com/stretchr/testify/assert"
)

func TestBag(t *testing.T) {
	bag := diag.NewBag()
	diag.Report(bag, diag.MissingDependency, diag.Location{File: "b.yaml", Line: 3}, "no source for %s", "C")
	diag.Report(bag, diag.UnusedDelegateParameter, diag.Location{File: "a.yaml", Line: 9}, "unused")

	assert.Equal(t, 2, bag.Len())
	assert.Equal(t, 1, bag.ErrorCount())
	assert.True(t, bag.HasErrors())
	assert.Len(t, bag.WithCode(diag.MissingDependency), 1)

	sorted := bag.Sorted()
	assert.Equal(t, diag.UnusedDelegateParameter, sorted[0].Code)
	assert.Equal(t, "b.yaml:3: error SI0102: no source for C", sorted[1].String())
}

func TestCounter(t *testing.T) {
	bag := diag.NewBag()
	c := &diag.Counter{Sink: bag}
	diag.Report(c, diag.DelegateIdentity, diag.Location{}, "warn")
	assert.Equal(t, 0, c.Errors())
	diag.Report(c, diag.CircularDependency, diag.Location{}, "cycle")
	assert.Equal(t, 1, c.Errors())
	assert.Equal(t, 2, bag.Len())
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "", diag.Location{}.String())
	assert.Equal(t, "m.yaml:4 (App.A)", diag.Location{File: "m.yaml", Line: 4, Symbol: "App.A"}.String())
	assert.Equal(t, "(App)", diag.Location{Symbol: "App"}.String())
}
