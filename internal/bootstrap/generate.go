package bootstrap

import (
	"log/slog"
	"path/filepath"

	"github.com/libeanim/seafile-docker/internal/render"
)

// generateDockerfile renders the local Dockerfile into the generated dir.
// Regenerated on every start so config edits take effect on restart.
func (p *Pipeline) generateDockerfile() error {
	slog.Info("generating local Dockerfile")
	data := map[string]any{
		"seafile_version": p.version,
		"https":           p.cfg.Server.HTTPS(),
		"domain":          p.cfg.Server.Domain,
	}
	return render.Render(
		p.templatePath("Dockerfile.template"),
		filepath.Join(p.cfg.Paths.GeneratedDir, "Dockerfile"),
		data,
	)
}

// generateNginxConf renders the final nginx configuration into the
// generated dir. The letsencrypt path renders its own temporary plaintext
// variant of the same template directly into the live sites dir.
func (p *Pipeline) generateNginxConf() error {
	slog.Info("generating local nginx conf")
	data := map[string]any{
		"https":        p.cfg.Server.HTTPS(),
		"domain":       p.cfg.Server.Hostname,
		"service_port": p.cfg.Server.ServicePort,
	}
	return render.Render(
		p.templatePath(nginxTemplateName),
		filepath.Join(p.cfg.Paths.GeneratedDir, "seafile.nginx.conf"),
		data,
	)
}
