package bootstrap

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/libeanim/seafile-docker/internal/config"
	"github.com/libeanim/seafile-docker/internal/proc"
)

// fakeRunner records every Command and optionally fails or reacts to
// specific commands, mirroring the mock style used for the external
// dependency clients elsewhere in the codebase.
type fakeRunner struct {
	calls []proc.Command
	fail  map[string]error         // keyed by base name of Command.Name
	onRun func(proc.Command) error // invoked after recording, before fail lookup
}

func (r *fakeRunner) Run(_ context.Context, c proc.Command) error {
	r.calls = append(r.calls, c)
	if r.onRun != nil {
		if err := r.onRun(c); err != nil {
			return err
		}
	}
	if err, ok := r.fail[filepath.Base(c.Name)]; ok {
		return err
	}
	return nil
}

// named returns the recorded calls whose base command name matches.
func (r *fakeRunner) named(base string) []proc.Command {
	var out []proc.Command
	for _, c := range r.calls {
		if filepath.Base(c.Name) == base {
			out = append(out, c)
		}
	}
	return out
}

// testPipeline builds a Pipeline over temp dirs with test templates in
// place and a zero reload delay. The version is pre-resolved so tests can
// call the phase methods directly.
func testPipeline(t *testing.T) (*Pipeline, *fakeRunner) {
	t.Helper()

	root := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Hostname: "seafile.example.com",
			Domain:   "seafile.example.com",
		},
		Paths: config.PathsConfig{
			TopDir:        filepath.Join(root, "opt", "seafile"),
			SharedDir:     filepath.Join(root, "shared", "seafile"),
			SSLDir:        filepath.Join(root, "shared", "ssl"),
			GeneratedDir:  filepath.Join(root, "generated"),
			TemplatesDir:  filepath.Join(root, "templates"),
			NginxSitesDir: filepath.Join(root, "sites-enabled"),
			ScriptsDir:    filepath.Join(root, "scripts"),
		},
		Wait: config.WaitConfig{
			MySQLHost:     "127.0.0.1",
			MySQLAttempts: 2,
			NginxHost:     "127.0.0.1",
			NginxAttempts: 2,
			Interval:      time.Millisecond,
		},
	}

	require.NoError(t, os.MkdirAll(cfg.Paths.TopDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.Paths.SharedDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.Paths.GeneratedDir, 0o755))
	writeTestTemplates(t, cfg.Paths.TemplatesDir)

	runner := &fakeRunner{fail: map[string]error{}}
	p := New(cfg, runner)
	p.ReloadDelay = 0
	p.version = "7.0.5"
	return p, runner
}

func writeTestTemplates(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	templates := map[string]string{
		"Dockerfile.template":         "FROM seafileltd/base\nENV SEAFILE_VERSION={{ .seafile_version }}\nENV HTTPS={{ .https }}\nENV DOMAIN={{ .domain }}\n",
		"seafile.nginx.conf.template": "server_name {{ .domain }};\nhttps={{ .https }}\n",
		"letsencrypt.cron.template":   "0 0 1 * * root /scripts/ssl.sh {{ .ssl_dir }} {{ .domain }}\n",
	}
	for name, content := range templates {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

// installSetupScripts drops a minimal vendored setup script pair into the
// pipeline's install dir so the patch step has something to rewrite.
func installSetupScripts(t *testing.T, p *Pipeline) string {
	t.Helper()

	dir := p.installDir()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	py := filepath.Join(dir, setupPythonScript)
	require.NoError(t, os.WriteFile(py, []byte(
		"def check_root_passwd(mysql_root_passwd):\n"+
			"    if not mysql_root_passwd:\n"+
			"        raise InvalidAnswer('root password cannot be empty')\n",
	), 0o755))

	sh := filepath.Join(dir, setupShellScript)
	require.NoError(t, os.WriteFile(sh, []byte("#!/bin/sh\n"), 0o755))
	return py
}

// setupCreatesData mimics the vendored setup script: it populates the
// top dir with the generated state directories and base config files.
func setupCreatesData(t *testing.T, p *Pipeline) func(proc.Command) error {
	t.Helper()
	return func(c proc.Command) error {
		if !strings.HasSuffix(c.Name, setupShellScript) {
			return nil
		}
		top := p.cfg.Paths.TopDir
		for _, name := range persistedDirs {
			if err := os.MkdirAll(filepath.Join(top, name), 0o755); err != nil {
				return err
			}
		}
		if err := os.WriteFile(filepath.Join(top, "conf", "seahub_settings.py"), []byte("SECRET_KEY = 'x'\n"), 0o644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(top, "conf", "ccnet.conf"), []byte("[General]\nNAME = seafile\n"), 0o644)
	}
}

// listenTCP opens an ephemeral localhost listener and returns its port.
func listenTCP(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().(*net.TCPAddr).Port
}

// closedPort returns a localhost port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// writeCert mints a self-signed certificate for the pipeline's domain
// expiring at notAfter and places it where the TLS bootstrapper looks.
func writeCert(t *testing.T, p *Pipeline, notAfter time.Time) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	domain := p.cfg.Server.Hostname
	tpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: domain},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     notAfter,
		DNSNames:     []string{domain},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tpl, &tpl, &key.PublicKey, key)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(p.cfg.Paths.SSLDir, 0o755))
	path := filepath.Join(p.cfg.Paths.SSLDir, domain+".crt")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	return path
}
