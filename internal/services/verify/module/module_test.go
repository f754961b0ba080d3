package module

import (
	"context"
	"testing"

	"rollcall/internal/modkit"
	"rollcall/internal/modkit/module"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/logger"
	"rollcall/internal/services/verify/domain"
)

func TestFromConfig_Defaults(t *testing.T) {
	t.Setenv("VERIFY_BATCH_SIZE", "25")
	o := FromConfig(config.New())
	if o.BatchSize != 25 || o.HourlyLimit != 1000 || o.RateKey == "" {
		t.Fatalf("options %+v", o)
	}
}

func TestNew_MemoryCounterWithoutRedis(t *testing.T) {
	m := New(modkit.Deps{Log: *logger.Get(), Cfg: config.New()}, Options{HourlyLimit: 7})
	v := module.MustPortsOf[domain.Verifier](m)
	st, err := v.Status(context.Background())
	if err != nil || st.Ceiling != 7 || st.Remaining != 7 {
		t.Fatalf("status %+v %v", st, err)
	}
}
