// Package bootstrap runs the one-shot container provisioning pipeline:
// render config artifacts, provision a letsencrypt certificate when
// enabled, wait for mysql, then initialize the seafile server exactly
// once per persistent volume.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/libeanim/seafile-docker/internal/config"
	"github.com/libeanim/seafile-docker/internal/netwait"
	"github.com/libeanim/seafile-docker/internal/proc"
	"github.com/libeanim/seafile-docker/internal/telemetry"
)

// versionEnv carries the seafile release the image was built for; it is
// recorded in the version stamp on the persistent volume.
const versionEnv = "SEAFILE_VERSION"

const nginxTemplateName = "seafile.nginx.conf.template"

// Pipeline holds everything the bootstrap needs to run. All subprocess
// invocations go through the Runner so tests can fake them.
type Pipeline struct {
	cfg    *config.Config
	runner proc.Runner

	// ReloadDelay is the pause after "nginx -s reload" before the ACME
	// challenge runs; the reload needs a moment to take effect.
	// TODO: poll the listener state instead of sleeping a fixed delay.
	ReloadDelay time.Duration

	// version is resolved from versionEnv at the start of Run.
	version string
}

// New constructs a Pipeline. No filesystem or network access happens
// until Run.
func New(cfg *config.Config, runner proc.Runner) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		runner:      runner,
		ReloadDelay: 2 * time.Second,
	}
}

// Run executes the pipeline phases in their fixed order. Every phase is
// fatal on failure; recovery is re-running the container, which re-enters
// the idempotent paths.
func (p *Pipeline) Run(ctx context.Context) error {
	p.version = os.Getenv(versionEnv)
	if p.version == "" {
		return fmt.Errorf("%s environment variable is not set", versionEnv)
	}

	if err := p.ensureDirs(); err != nil {
		return err
	}
	telemetry.AttachFile(filepath.Join(p.cfg.Paths.GeneratedDir, "bootstrap.log"))

	if err := p.generateDockerfile(); err != nil {
		return err
	}

	if p.cfg.Server.Letsencrypt {
		if err := p.initLetsencrypt(ctx); err != nil {
			return err
		}
	}

	if err := p.generateNginxConf(); err != nil {
		return err
	}

	if err := netwait.Wait(ctx, p.mysqlTarget()); err != nil {
		return err
	}

	if err := p.initSeafile(ctx); err != nil {
		return err
	}

	slog.Info("bootstrap complete", "version", p.version)
	return nil
}

func (p *Pipeline) ensureDirs() error {
	for _, dir := range []string{p.cfg.Paths.SharedDir, p.cfg.Paths.GeneratedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

func (p *Pipeline) mysqlTarget() netwait.Target {
	w := p.cfg.Wait
	return netwait.Target{
		Name:     "mysql",
		Host:     w.MySQLHost,
		Port:     w.MySQLPort,
		Attempts: w.MySQLAttempts,
		Interval: w.Interval,
	}
}

func (p *Pipeline) nginxTarget() netwait.Target {
	w := p.cfg.Wait
	return netwait.Target{
		Name:     "nginx",
		Host:     w.NginxHost,
		Port:     w.NginxPort,
		Attempts: w.NginxAttempts,
		Interval: w.Interval,
	}
}

// installDir is where the image unpacked the seafile server release and
// its vendored setup scripts.
func (p *Pipeline) installDir() string {
	return filepath.Join(p.cfg.Paths.TopDir, "seafile-server-"+p.version)
}

func (p *Pipeline) templatePath(name string) string {
	return filepath.Join(p.cfg.Paths.TemplatesDir, name)
}
