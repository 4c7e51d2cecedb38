package input

import (
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Module names under which the input plugins are registered.
const (
	ModuleCSV  = "cryoflow.collections.input.csv"
	ModuleJSON = "cryoflow.collections.input.json"
	ModuleSQL  = "cryoflow.collections.input.sql"
)

func init() {
	pkg.RegisterModule(pkg.NewModule(ModuleCSV, pkg.Define("CSVScan", newCSVScan)))
	pkg.RegisterModule(pkg.NewModule(ModuleJSON, pkg.Define("JSONScan", newJSONScan)))
	pkg.RegisterModule(pkg.NewModule(ModuleSQL, pkg.Define("SQLScan", newSQLScan)))
}
