// Package certs inspects the PEM certificate the ACME helper drops under
// the shared ssl dir. The expiry check is the guard that keeps the
// bootstrap from re-requesting certificates on every container restart
// and tripping upstream rate limits.
package certs

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// ValidDays returns the number of whole days until the certificate at
// path expires. Already-expired certificates yield a negative count.
func ValidDays(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading certificate %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return 0, fmt.Errorf("no PEM block in %s", path)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return 0, fmt.Errorf("parsing certificate %s: %w", path, err)
	}

	return int(time.Until(cert.NotAfter).Hours() / 24), nil
}

// HasValidDays reports whether the certificate at path has strictly more
// than days whole days of validity left. An unreadable or unparseable
// certificate counts as invalid so the caller falls through to
// reissuance.
func HasValidDays(path string, days int) bool {
	remaining, err := ValidDays(path)
	if err != nil {
		slog.Warn("cannot determine certificate validity", "path", path, "err", err)
		return false
	}
	return remaining > days
}
