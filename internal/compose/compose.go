// Package compose resolves container references to compose projects and
// discovers the containers that belong to a project by shelling out to
// the docker CLI. Every token handed to the CLI has already been through
// ident.Sanitize.
package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"path"
	"strings"

	"github.com/portsidehq/portside/internal/ident"
)

// ErrNotProvisioned reports a container reference that is still empty.
// Callers should retry after the attempt has run at least once.
var ErrNotProvisioned = errors.New("container reference not provisioned")

// CommandError reports a docker invocation that exited non-zero. The
// captured stderr is surfaced to the caller as diagnostic text.
type CommandError struct {
	Args   []string
	Stderr string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("docker %s failed: %s", strings.Join(e.Args, " "), strings.TrimSpace(e.Stderr))
}

// ServiceRecord describes one container of a compose project as seen by
// `docker ps`. Records are built fresh per discovery call and never
// persisted.
type ServiceRecord struct {
	ContainerID    string   `json:"containerId"`
	ContainerName  string   `json:"containerName"`
	Service        string   `json:"service"`
	State          string   `json:"state"`
	Status         string   `json:"status"`
	Image          string   `json:"image"`
	Ports          []string `json:"ports"`
	ComposeProject string   `json:"composeProject"`
	BrowserURL     string   `json:"browserUrl,omitempty"`
}

// ResolveProject derives the compose project name from a container
// reference. Path-like references contribute their final path segment;
// bare references are used as-is. The candidate is sanitized before it
// is returned.
func ResolveProject(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", ErrNotProvisioned
	}

	candidate := trimmed
	if strings.ContainsAny(trimmed, `/\`) {
		base := path.Base(strings.ReplaceAll(trimmed, `\`, "/"))
		if base == "" || base == "." || base == "/" {
			return "", fmt.Errorf("derive compose project from %q: no usable path component", trimmed)
		}
		candidate = base
	}

	return ident.Sanitize(candidate)
}

// runCommand is the subprocess seam; tests replace it to avoid a real
// docker binary.
type runCommand func(ctx context.Context, bin string, args []string) (stdout, stderr []byte, err error)

func runDocker(ctx context.Context, bin string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Client lists compose services through the docker CLI.
type Client struct {
	bin         string
	localDomain string
	run         runCommand
}

// NewClient returns a discovery client. An empty bin falls back to
// "docker"; an empty localDomain disables reachability URLs.
func NewClient(bin, localDomain string) *Client {
	if bin == "" {
		bin = DefaultBin
	}
	return &Client{bin: bin, localDomain: localDomain, run: runDocker}
}

// psRow mirrors one line of `docker ps --format '{{json .}}'`.
type psRow struct {
	ID     string `json:"ID"`
	Names  string `json:"Names"`
	State  string `json:"State"`
	Status string `json:"Status"`
	Image  string `json:"Image"`
	Ports  string `json:"Ports"`
}

// Services returns one record per running container owned by project.
// Zero matching rows yield an empty slice. Rows that fail to parse are
// skipped with a warning; only a non-zero exit fails the whole call.
func (c *Client) Services(ctx context.Context, project string) ([]ServiceRecord, error) {
	args := []string{
		"ps",
		"--filter", "label=com.docker.compose.project=" + project,
		"--format", "{{json .}}",
	}
	stdout, stderr, err := c.run(ctx, c.bin, args)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CommandError{Args: args, Stderr: string(stderr)}
		}
		return nil, fmt.Errorf("run %s ps: %w", c.bin, err)
	}

	records := make([]ServiceRecord, 0)
	for _, line := range strings.Split(string(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row psRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			log.Printf("compose: skipping unparseable ps row: %v (%s)", err, line)
			continue
		}
		records = append(records, c.record(row, project))
	}
	return records, nil
}

func (c *Client) record(row psRow, project string) ServiceRecord {
	service, canonical := deriveService(row.Names, project)
	rec := ServiceRecord{
		ContainerID:    row.ID,
		ContainerName:  row.Names,
		Service:        service,
		State:          row.State,
		Status:         row.Status,
		Image:          row.Image,
		Ports:          splitPorts(row.Ports),
		ComposeProject: project,
	}
	if canonical && c.localDomain != "" {
		rec.BrowserURL = fmt.Sprintf("http://%s.%s.%s", service, project, c.localDomain)
	}
	return rec
}

// DeriveServiceName turns a compose container name like "proj-web-2"
// into its service name ("web"). The "<project>-" prefix is stripped
// when present, then a trailing purely-numeric replica suffix. When the
// replica rule would leave nothing, the prefix-trimmed name stands, with
// stray hyphens removed.
func DeriveServiceName(containerName, project string) string {
	service, _ := deriveService(containerName, project)
	return service
}

// deriveService additionally reports whether the name matched the
// canonical "<project>-<service>[-<replica>]" shape. Only canonical
// names earn a reachability URL; names recovered through the fallback
// trim would produce hostnames that resolve to nothing.
func deriveService(containerName, project string) (string, bool) {
	rest, hadPrefix := strings.CutPrefix(containerName, project+"-")
	name := rest
	if idx := strings.LastIndex(rest, "-"); idx >= 0 {
		if suffix := rest[idx+1:]; suffix != "" && isDigits(suffix) && rest[:idx] != "" {
			name = rest[:idx]
		}
	}
	trimmed := strings.Trim(name, "-")
	return trimmed, hadPrefix && trimmed != "" && trimmed == name
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func splitPorts(ports string) []string {
	parts := strings.Split(ports, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
