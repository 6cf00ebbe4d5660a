package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/libeanim/seafile-docker/internal/certs"
	"github.com/libeanim/seafile-docker/internal/netwait"
	"github.com/libeanim/seafile-docker/internal/proc"
	"github.com/libeanim/seafile-docker/internal/render"
)

// certValidityDays is the renewal window: a certificate with more than
// this many days left is not reissued. Keeps restarts from burning
// through the upstream ACME rate limit.
const certValidityDays = 30

// certState tracks the TLS bootstrap state machine:
// NoCert -> TempHTTPServing -> CertIssued -> RenewalScheduled.
// A valid existing certificate enters at CertIssued.
type certState int

const (
	stateNoCert certState = iota
	stateTempHTTPServing
	stateCertIssued
	stateRenewalScheduled
)

func (s certState) String() string {
	switch s {
	case stateNoCert:
		return "no-cert"
	case stateTempHTTPServing:
		return "temp-http-serving"
	case stateCertIssued:
		return "cert-issued"
	case stateRenewalScheduled:
		return "renewal-scheduled"
	}
	return "unknown"
}

func transition(s certState) {
	slog.Debug("tls bootstrap state", "state", s.String())
}

// initLetsencrypt provisions the TLS certificate for the configured
// hostname. Only called when server.letsencrypt is enabled.
func (p *Pipeline) initLetsencrypt(ctx context.Context) error {
	slog.Info("preparing for letsencrypt")

	if err := netwait.Wait(ctx, p.nginxTarget()); err != nil {
		return err
	}

	if err := os.MkdirAll(p.cfg.Paths.SSLDir, 0o755); err != nil {
		return fmt.Errorf("creating ssl dir: %w", err)
	}

	domain := p.cfg.Server.Hostname

	// The renewal cron entry is rendered unconditionally so periodic
	// renewal is configured even when issuance is skipped below.
	cronData := map[string]any{
		"ssl_dir": p.cfg.Paths.SSLDir,
		"domain":  domain,
	}
	if err := render.Render(
		p.templatePath("letsencrypt.cron.template"),
		filepath.Join(p.cfg.Paths.GeneratedDir, "letsencrypt.cron"),
		cronData,
	); err != nil {
		return err
	}

	state := stateNoCert
	crt := filepath.Join(p.cfg.Paths.SSLDir, domain+".crt")
	if _, err := os.Stat(crt); err == nil {
		slog.Info("found existing cert file", "path", crt)
		if certs.HasValidDays(crt, certValidityDays) {
			slog.Info("skipping letsencrypt verification, certificate is still valid", "path", crt)
			state = stateCertIssued
		}
	}

	if state == stateNoCert {
		if err := p.issueCert(ctx, domain); err != nil {
			return err
		}
		state = stateCertIssued
	}
	transition(state)

	transition(stateRenewalScheduled)
	return nil
}

// issueCert stands up a temporary plaintext nginx config so the ACME
// HTTP-01 challenge has a live listener, then invokes the external ACME
// helper. A non-zero exit from the helper is fatal.
func (p *Pipeline) issueCert(ctx context.Context, domain string) error {
	slog.Info("starting letsencrypt verification", "domain", domain)

	tempData := map[string]any{
		"https":  false,
		"domain": domain,
	}
	liveConf := filepath.Join(p.cfg.Paths.NginxSitesDir, "seafile.nginx.conf")
	if err := render.Render(p.templatePath(nginxTemplateName), liveConf, tempData); err != nil {
		return err
	}

	if err := p.runner.Run(ctx, proc.Command{Name: "nginx", Args: []string{"-s", "reload"}}); err != nil {
		return fmt.Errorf("reloading nginx: %w", err)
	}
	transition(stateTempHTTPServing)
	time.Sleep(p.ReloadDelay)

	sslScript := filepath.Join(p.cfg.Paths.ScriptsDir, "ssl.sh")
	if err := p.runner.Run(ctx, proc.Command{Name: sslScript, Args: []string{p.cfg.Paths.SSLDir, domain}}); err != nil {
		return fmt.Errorf("letsencrypt verification failed: %w", err)
	}
	return nil
}
