package bootstrap

import "strings"

// ParsePortTokens converts the server.port_mappings value, a
// comma-separated "host:container" list like "80:80,443:443", into the
// space-joined docker port flags ("-p 80:80 -p 443:443") consumed by the
// outer launch script. Empty input yields the empty string.
func ParsePortTokens(mappings string) string {
	var tokens []string
	for _, part := range strings.Split(mappings, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens = append(tokens, "-p "+part)
	}
	return strings.Join(tokens, " ")
}
