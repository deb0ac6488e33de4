package sandbox

import (
	"maps"
	"slices"
)

// providers builds the importable modules. Each run gets fresh instances,
// so module state such as the random generator or the current figure is
// never shared. pandas and seaborn are absent on purpose: they pass the
// import policy but fail here with ModuleNotFoundError.
var providers map[string]func(in *Interp) *Module

func init() {
	providers = map[string]func(in *Interp) *Module{
		"math":              newMathModule,
		"statistics":        newStatisticsModule,
		"random":            newRandomModule,
		"numpy":             newNumpyModule,
		"numpy.random":      newNumpyRandomModule,
		"matplotlib":        newMatplotlibModule,
		"matplotlib.pyplot": newPyplotModule,
	}
}

// Modules lists the module paths a snippet can import at runtime.
func Modules() []string {
	return slices.Sorted(maps.Keys(providers))
}
