package opts

import (
	"context"

	"github.com/walteh/cssassets/pkg/config"
	"github.com/walteh/cssassets/pkg/log"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	ConfigFile string
	Console    *log.Logger
}

// LoadConfig loads the project config named by ConfigFile
func (o *RootOpts) LoadConfig(ctx context.Context) (*config.Config, error) {
	return config.Load(ctx, o.ConfigFile)
}
