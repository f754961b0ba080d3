// Package modkit wires rollcall modules from the opened stores and config
package modkit

import (
	"rollcall/internal/modkit/module"
	"rollcall/internal/modkit/repokit"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/store"
	"rollcall/internal/platform/store/rds"
)

// Module is the contract every rollcall module satisfies
type Module = module.Module

// Deps are the shared seams handed to every module. Any store may be nil
// when it was not configured.
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse
	RDS *rds.Client
}

// FromStore builds Deps from whatever s managed to open
func FromStore(log logger.Logger, cfg config.Conf, s *store.Store) Deps {
	d := Deps{Log: log, Cfg: cfg}
	if s != nil {
		d.PG, d.CH, d.RDS = s.PG, s.CH, s.RDS
	}
	return d
}
