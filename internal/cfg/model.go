package cfg

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/tklauser/go-sysconf"
)

type Config struct {
	BatchPages  int    `env:"PAGEINSPECT_BATCH_PAGES"  envDefault:"512"`
	Debug       bool   `env:"PAGEINSPECT_DEBUG"`
	PageSize    uint64 `env:"PAGEINSPECT_PAGE_SIZE"`
	ProcRoot    string `env:"PAGEINSPECT_PROC_ROOT"    envDefault:"/proc"`
	RequireRoot bool   `env:"PAGEINSPECT_REQUIRE_ROOT" envDefault:"true"`
	Workers     int    `env:"PAGEINSPECT_WORKERS"      envDefault:"1"`
}

func Parse() (Config, error) {
	config, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	if config.PageSize == 0 {
		pageSize, err := sysconf.Sysconf(sysconf.SC_PAGESIZE)
		if err != nil {
			return Config{}, fmt.Errorf("failed to get page size: %w", err)
		}

		config.PageSize = uint64(pageSize)
	}

	if config.Workers < 1 {
		return Config{}, fmt.Errorf("PAGEINSPECT_WORKERS must be at least 1, got %d", config.Workers)
	}

	if config.BatchPages < 1 {
		return Config{}, fmt.Errorf("PAGEINSPECT_BATCH_PAGES must be at least 1, got %d", config.BatchPages)
	}

	return config, nil
}
