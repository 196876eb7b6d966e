package source_test

import (
	"testing"

	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
	"github.com/stretchr/testify/assert"
)

func TestEquivalent(t *testing.T) {
	ctor := typesys.Method{Params: []typesys.Param{{Name: "b", Type: "B"}}}
	reg := func(line int, scope source.Scope) *source.Registration {
		return &source.Registration{Type: "A", Scope: scope, Constructor: ctor,
			Location: diag.Location{File: "app.yaml", Line: line}}
	}

	tests := []struct {
		name string
		a, b source.Source
		want bool
	}{
		{"declaration site ignored", reg(1, source.SingleInstance), reg(2, source.SingleInstance), true},
		{"scope differs", reg(1, source.SingleInstance), reg(1, source.InstancePerResolution), false},
		{"constructor differs", reg(1, source.SingleInstance),
			&source.Registration{Type: "A", Scope: source.SingleInstance}, false},
		{"kind differs", reg(1, source.SingleInstance),
			&source.FactoryMethod{Produces: "A", Scope: source.SingleInstance}, false},
		{"forwarded through equivalent",
			&source.Forwarded{As: "IA", Underlying: reg(1, source.SingleInstance)},
			&source.Forwarded{As: "IA", Underlying: reg(9, source.SingleInstance)}, true},
		{"decorated differently",
			&source.Decorator{Spec: &source.DecoratorSpec{Type: "Logged", Decorates: "A"}, Inner: reg(1, 0)},
			&source.Decorator{Spec: &source.DecoratorSpec{Type: "Traced", Decorates: "A"}, Inner: reg(1, 0)}, false},
		{"nil", reg(1, 0), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, source.Equivalent(tt.a, tt.b))
			assert.Equal(t, tt.want, source.Equivalent(tt.b, tt.a))
		})
	}
}
