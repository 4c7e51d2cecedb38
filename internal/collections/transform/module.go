package transform

import (
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

const (
	ModuleMultiplier = "cryoflow.collections.transform.multiplier"
	ModuleSelect     = "cryoflow.collections.transform.select"
)

func init() {
	pkg.RegisterModule(pkg.NewModule(ModuleMultiplier, pkg.Define("ColumnMultiplier", newColumnMultiplier)))
	pkg.RegisterModule(pkg.NewModule(ModuleSelect, pkg.Define("ColumnSelect", newColumnSelect)))
}
