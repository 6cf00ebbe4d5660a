package main

import (
	"github.com/libeanim/seafile-docker/internal/bootstrap"
	"github.com/libeanim/seafile-docker/internal/config"
	"github.com/libeanim/seafile-docker/internal/proc"
)

// AppContext holds the constructed application dependencies shared across
// the command paths. It is built once in PersistentPreRunE.
type AppContext struct {
	cfg      *config.Config
	runner   proc.Runner
	pipeline *bootstrap.Pipeline
}

// buildAppContext wires the real subprocess runner into the pipeline.
// Construction has no side effects; nothing is touched until Run.
func buildAppContext(cfg *config.Config) (*AppContext, error) {
	runner := proc.ExecRunner{}
	return &AppContext{
		cfg:      cfg,
		runner:   runner,
		pipeline: bootstrap.New(cfg, runner),
	}, nil
}
