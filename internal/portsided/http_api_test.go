package portsided

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"

	"github.com/portsidehq/portside/internal/compose"
	"github.com/portsidehq/portside/internal/relay"
	"github.com/portsidehq/portside/internal/store"
)

// stubDocker is a stand-in for the docker CLI: ps emits two compose
// rows, logs tails a line then follows, exec echoes stdin.
const stubDocker = `#!/bin/sh
case "$1" in
ps)
	printf '%s\n' '{"ID":"abc123","Names":"proj-web-1","State":"running","Status":"Up 5 minutes","Image":"nginx:1.27","Ports":"0.0.0.0:8080->80/tcp"}'
	printf '%s\n' '{"ID":"def456","Names":"proj-db-1","State":"running","Status":"Up 5 minutes","Image":"postgres:16","Ports":""}'
	;;
logs)
	printf 'hello from %s\n' "$5"
	sleep 60
	;;
exec)
	cat
	;;
esac
`

const failingDocker = `#!/bin/sh
echo "cannot connect to the docker daemon" 1>&2
exit 1
`

func newTestAPI(t *testing.T, script string) (*API, *store.Store) {
	t.Helper()

	dir := t.TempDir()
	bin := filepath.Join(dir, "docker-stub")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	st, err := store.Open(filepath.Join(dir, "attempts.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	discovery := compose.NewClient(bin, "orb.local")
	return NewAPI(st, discovery, bin, 400, nil), st
}

func newTestServer(t *testing.T, script string) (*httptest.Server, *store.Store) {
	t.Helper()
	api, st := newTestAPI(t, script)
	mux := http.NewServeMux()
	api.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, st
}

func decodeResponse(t *testing.T, resp *http.Response) apiResponse {
	t.Helper()
	defer resp.Body.Close()
	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func putAttempt(t *testing.T, st *store.Store, ref string) store.Attempt {
	t.Helper()
	attempt := store.Attempt{
		ID:           uuid.New(),
		TaskID:       uuid.New(),
		ProjectID:    uuid.New(),
		ContainerRef: ref,
	}
	if err := st.Put(attempt); err != nil {
		t.Fatalf("put attempt: %v", err)
	}
	return attempt
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubDocker)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	if out := decodeResponse(t, resp); !out.Success {
		t.Fatalf("healthz = %+v, want success", out)
	}
}

func TestContainerInfo(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t, stubDocker)
	attempt := putAttempt(t, st, "a/b/proj")

	resp, err := http.Get(srv.URL + "/api/containers/info?ref=a/b/proj")
	if err != nil {
		t.Fatalf("get info: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info status = %d", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	data, _ := json.Marshal(out.Data)
	var info store.ContainerInfo
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("unmarshal info: %v", err)
	}
	if info.AttemptID != attempt.ID || info.TaskID != attempt.TaskID || info.ProjectID != attempt.ProjectID {
		t.Fatalf("info = %+v, want ids from %+v", info, attempt)
	}
}

func TestContainerInfoErrors(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubDocker)

	resp, err := http.Get(srv.URL + "/api/containers/info")
	if err != nil {
		t.Fatalf("get info: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing ref status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/containers/info?ref=unknown")
	if err != nil {
		t.Fatalf("get info: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown ref status = %d, want 404", resp.StatusCode)
	}
}

func TestContainerServices(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t, stubDocker)
	attempt := putAttempt(t, st, "/work/attempts/proj")

	resp, err := http.Get(srv.URL + "/api/containers/" + attempt.ID.String() + "/services")
	if err != nil {
		t.Fatalf("get services: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("services status = %d", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	data, _ := json.Marshal(out.Data)
	var services []compose.ServiceRecord
	if err := json.Unmarshal(data, &services); err != nil {
		t.Fatalf("unmarshal services: %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("got %d services, want 2", len(services))
	}
	if services[0].Service != "web" || services[0].BrowserURL != "http://web.proj.orb.local" {
		t.Fatalf("services[0] = %+v", services[0])
	}
	if services[1].Service != "db" {
		t.Fatalf("services[1] = %+v", services[1])
	}
}

func TestContainerServicesErrors(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t, stubDocker)

	resp, err := http.Get(srv.URL + "/api/containers/not-a-uuid/services")
	if err != nil {
		t.Fatalf("get services: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad attempt id status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/containers/" + uuid.NewString() + "/services")
	if err != nil {
		t.Fatalf("get services: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown attempt status = %d, want 404", resp.StatusCode)
	}

	// Empty container ref means the attempt has not been provisioned.
	unprovisioned := putAttempt(t, st, "")
	resp, err = http.Get(srv.URL + "/api/containers/" + unprovisioned.ID.String() + "/services")
	if err != nil {
		t.Fatalf("get services: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unprovisioned status = %d, want 409", resp.StatusCode)
	}
}

func TestContainerServicesCommandFailure(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t, failingDocker)
	attempt := putAttempt(t, st, "proj")

	resp, err := http.Get(srv.URL + "/api/containers/" + attempt.ID.String() + "/services")
	if err != nil {
		t.Fatalf("get services: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("command failure status = %d, want 502", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	if !strings.Contains(out.Message, "cannot connect to the docker daemon") {
		t.Fatalf("message = %q, want captured stderr", out.Message)
	}
}

func TestRegisterAttempt(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t, stubDocker)

	body, _ := json.Marshal(map[string]string{
		"task_id":       uuid.NewString(),
		"project_id":    uuid.NewString(),
		"container_ref": "a/b/proj",
	})
	resp, err := http.Post(srv.URL+"/api/attempts", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post attempt: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	data, _ := json.Marshal(out.Data)
	var created store.Attempt
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal attempt: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("attempt id not assigned")
	}
	if _, err := st.FindAttempt(created.ID); err != nil {
		t.Fatalf("created attempt not stored: %v", err)
	}
}

func TestLogsWSRejectsBadContainerName(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubDocker)
	resp, err := http.Get(srv.URL + "/api/containers/bad%20name/logs/ws")
	if err != nil {
		t.Fatalf("get logs ws: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 before any upgrade", resp.StatusCode)
	}
}

func TestLogsWSStreamsFrames(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubDocker)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/containers/proj-web-1/logs/ws"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial logs ws: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame relay.LogFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("unmarshal frame %q: %v", payload, err)
	}
	if frame.Channel != "stdout" || frame.Content != "hello from proj-web-1" {
		t.Fatalf("frame = %+v", frame)
	}

	deadline := time.Now().Add(time.Second)
	if err := conn.WriteControl(gws.CloseMessage,
		gws.FormatCloseMessage(gws.CloseNormalClosure, ""), deadline); err != nil {
		t.Fatalf("send close: %v", err)
	}
}

func TestShellWSRoundTrip(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubDocker)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/containers/proj-web-1/shell/ws"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial shell ws: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(gws.BinaryMessage, []byte("uptime\n")); err != nil {
		t.Fatalf("send input: %v", err)
	}

	var got bytes.Buffer
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for got.Len() < len("uptime\n") {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read output: %v (have %q)", err, got.Bytes())
		}
		if messageType != gws.BinaryMessage {
			t.Fatalf("message type = %d, want binary", messageType)
		}
		got.Write(payload)
	}
	if got.String() != "uptime\n" {
		t.Fatalf("echo = %q", got.String())
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(gws.CloseMessage,
		gws.FormatCloseMessage(gws.CloseNormalClosure, ""), deadline)
}
