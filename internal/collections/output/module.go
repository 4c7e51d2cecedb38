package output

import (
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

const (
	ModuleCSV   = "cryoflow.collections.output.csv"
	ModuleJSON  = "cryoflow.collections.output.json"
	ModuleRedis = "cryoflow.collections.output.redis"
	ModuleAMQP  = "cryoflow.collections.output.amqp"
	ModuleS3    = "cryoflow.collections.output.s3"
)

func init() {
	pkg.RegisterModule(pkg.NewModule(ModuleCSV, pkg.Define("CSVWriter", newCSVWriter)))
	pkg.RegisterModule(pkg.NewModule(ModuleJSON, pkg.Define("JSONWriter", newJSONWriter)))
	pkg.RegisterModule(pkg.NewModule(ModuleRedis, pkg.Define("RedisWriter", newRedisWriter)))
	pkg.RegisterModule(pkg.NewModule(ModuleAMQP, pkg.Define("AMQPWriter", newAMQPWriter)))
	pkg.RegisterModule(pkg.NewModule(ModuleS3, pkg.Define("S3Writer", newS3Writer)))
}
