package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/libeanim/seafile-docker/internal/proc"
)

const (
	setupShellScript  = "setup-seafile-mysql.sh"
	setupPythonScript = "setup-seafile-mysql.py"
)

// persistedDirs are generated by the setup script under the top dir and
// moved into the shared mount exactly once. Their presence there is the
// idempotency signal for later runs.
var persistedDirs = []string{"conf", "ccnet", "seafile-data", "seahub-data"}

// dataInitialized is the canonical "already initialized" predicate: the
// persisted seafile-data dir only exists after a completed first run.
func (p *Pipeline) dataInitialized() bool {
	info, err := os.Stat(filepath.Join(p.cfg.Paths.SharedDir, "seafile-data"))
	return err == nil && info.IsDir()
}

func (p *Pipeline) versionStampPath() string {
	return filepath.Join(p.cfg.Paths.SharedDir, "seafile-data", "current_version")
}

func (p *Pipeline) updateVersionStamp() error {
	slog.Info("updating version stamp", "version", p.version)
	return os.WriteFile(p.versionStampPath(), []byte(p.version+"\n"), 0o644)
}

// initSeafile runs the vendored setup script on the first start of a
// volume and is a no-op (bar a version stamp backfill) on every
// subsequent start.
func (p *Pipeline) initSeafile(ctx context.Context) error {
	if p.dataInitialized() {
		if _, err := os.Stat(p.versionStampPath()); err != nil {
			if err := p.updateVersionStamp(); err != nil {
				return err
			}
		}
		slog.Info("skipping " + setupShellScript + ", found existing seafile-data")
		return nil
	}

	slog.Info("running " + setupShellScript + " in auto mode")

	if err := p.patchSetupScript(); err != nil {
		return err
	}

	env := map[string]string{
		"SERVER_NAME":       "seafile",
		"SERVER_IP":         p.cfg.Server.Hostname,
		"MYSQL_USER":        "seafile",
		"MYSQL_USER_PASSWD": uuid.New().String(),
		"MYSQL_USER_HOST":   "127.0.0.1",
		// The bundled MariaDB root user has an empty password and only
		// accepts connections from localhost.
		"MYSQL_ROOT_PASSWD": "",
	}

	setup := filepath.Join(p.installDir(), setupShellScript)
	if err := p.runner.Run(ctx, proc.Command{Name: setup, Args: []string{"auto", "-n", "seafile"}, Env: env}); err != nil {
		return fmt.Errorf("setup script failed: %w", err)
	}

	// The appends below touch files the setup script just produced, so
	// order matters: they must stay after the Run above.
	if err := p.appendSeahubSettings(); err != nil {
		return err
	}
	if err := p.appendCcnetSocket(); err != nil {
		return err
	}
	if err := p.relocateData(); err != nil {
		return err
	}

	return p.updateVersionStamp()
}

// patchSetupScript loosens the vendored script's refusal of an empty
// mysql root password: the bundled MariaDB image ships exactly that, and
// the script exposes no supported flag for it. Idempotent so a restart
// after a partial failure does not double-patch.
func (p *Pipeline) patchSetupScript() error {
	path := filepath.Join(p.installDir(), setupPythonScript)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("locating setup script: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading setup script: %w", err)
	}

	const (
		oldCheck = "if not mysql_root_passwd"
		newCheck = `if not mysql_root_passwd and "MYSQL_ROOT_PASSWD" not in os.environ`
	)
	content := string(data)
	if strings.Contains(content, newCheck) {
		return nil
	}
	if !strings.Contains(content, oldCheck) {
		return fmt.Errorf("setup script %s: mysql root password check not found", path)
	}
	content = strings.ReplaceAll(content, oldCheck, newCheck)
	return os.WriteFile(path, []byte(content), info.Mode().Perm())
}

// fileServerRoot builds the external file-serving URL that seahub hands
// to clients. The port is omitted for the default http port.
func (p *Pipeline) fileServerRoot() string {
	proto := "http"
	if p.cfg.Server.HTTPS() {
		proto = "https"
	}
	port := ""
	if sp := p.cfg.Server.ServicePort; sp != "" && sp != "80" {
		port = ":" + sp
	}
	return fmt.Sprintf("%s://%s%s/seafhttp", proto, p.cfg.Server.Hostname, port)
}

func (p *Pipeline) appendSeahubSettings() error {
	path := filepath.Join(p.cfg.Paths.TopDir, "conf", "seahub_settings.py")
	return appendToFile(path, fmt.Sprintf("\nFILE_SERVER_ROOT = %q\n", p.fileServerRoot()))
}

// appendCcnetSocket moves the ccnet unix socket out of the data dir:
// that dir ends up on a bind mount, and unix sockets cannot be created
// on external mounts on windows hosts and some linux setups.
func (p *Pipeline) appendCcnetSocket() error {
	path := filepath.Join(p.cfg.Paths.TopDir, "conf", "ccnet.conf")
	return appendToFile(path, "\n[Client]\nUNIX_SOCKET = /opt/seafile/ccnet.sock\n\n")
}

func appendToFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	return nil
}

// relocateData moves the freshly generated state into the shared mount.
// A pre-existing destination means a previous run already moved that dir,
// so it is left alone; that keeps a restart after a partial failure safe.
func (p *Pipeline) relocateData() error {
	for _, name := range persistedDirs {
		src := filepath.Join(p.cfg.Paths.TopDir, name)
		dst := filepath.Join(p.cfg.Paths.SharedDir, name)

		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if _, err := os.Stat(src); err != nil {
			continue
		}

		slog.Info("moving into shared mount", "dir", name)
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("moving %s to %s: %w", src, dst, err)
		}
	}
	return nil
}
