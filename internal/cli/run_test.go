package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SentientJobs/internal/config"
	"github.com/AaronLay10/SentientJobs/internal/mqtt"
	"github.com/AaronLay10/SentientJobs/internal/sim"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func writeEngineConfig(t *testing.T, driver string) *config.EngineConfig {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "jobs"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "jobs"), "patrol.json", patrolJSON)
	writeFile(t, dir, "triggers.yaml", "id: once\njob: patrol\nactive: false\n")
	path := writeFile(t, dir, "engine.yaml", `version: 1
engine:
  name: smoke
  tick_ms: 10
  seed: 7
jobs:
  dirs: [jobs]
  triggers: [triggers.yaml]
mqtt:
  enabled: false
storage:
  driver: `+driver+`
`)
	cfg, err := config.LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		return 0, err.Error()
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestRunServesUntilCancelled(t *testing.T) {
	for _, driver := range []string{config.DriverNone, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			cfg := writeEngineConfig(t, driver)
			runPort = freePort(t)
			defer func() { runPort = 0 }()
			base := "http://127.0.0.1:" + strconv.Itoa(runPort)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- run(ctx, cfg) }()

			deadline := time.Now().Add(5 * time.Second)
			for {
				if code, _ := get(t, base+"/ready"); code == http.StatusOK {
					break
				}
				if time.Now().After(deadline) {
					t.Fatal("engine never became ready")
				}
				time.Sleep(20 * time.Millisecond)
			}

			if code, body := get(t, base+"/catalog"); code != http.StatusOK || !strings.Contains(body, "patrol") {
				t.Errorf("catalog: %d %s", code, body)
			}
			if code, body := get(t, base+"/triggers"); code != http.StatusOK || !strings.Contains(body, "once") {
				t.Errorf("triggers: %d %s", code, body)
			}

			code, body := get(t, base+"/events/history?event=system.startup")
			switch driver {
			case config.DriverNone:
				if code != http.StatusServiceUnavailable {
					t.Errorf("history without journal: expected 503, got %d", code)
				}
			case config.DriverSQLite:
				if code != http.StatusOK || !strings.Contains(body, "system.startup") {
					t.Errorf("history: %d %s", code, body)
				}
			}

			cancel()
			select {
			case err := <-done:
				if err != nil {
					t.Errorf("run returned %v", err)
				}
			case <-time.After(10 * time.Second):
				t.Fatal("run did not stop after cancel")
			}
		})
	}
}

func TestRunRejectsBadJobDir(t *testing.T) {
	cfg := writeEngineConfig(t, config.DriverNone)
	cfg.Jobs.Dirs = []string{filepath.Join(t.TempDir(), "missing")}
	runPort = freePort(t)
	defer func() { runPort = 0 }()

	if err := run(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "load jobs") {
		t.Errorf("expected job load error, got %v", err)
	}
}

type refusingBroker struct{ calls int }

func (b *refusingBroker) Subscribe(topic string, handler paho.MessageHandler) error {
	b.calls++
	return errors.New("not authorized")
}

type discardCommands struct{}

func (discardCommands) Submit(sim.Command) error { return nil }

func TestReconnectLogsSubscribeFailure(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	broker := &refusingBroker{}
	sub := mqtt.NewCommandSubscriber(broker, discardCommands{}, "sim")

	onBrokerConnect(sub)
	onBrokerConnect(sub)

	if broker.calls != 2 {
		t.Errorf("expected a subscribe attempt per connect, got %d", broker.calls)
	}
	if sub.IsSubscribed() {
		t.Error("expected subscriber to stay unsubscribed")
	}
	if got := strings.Count(buf.String(), "failed to subscribe to sim/commands/#"); got != 2 {
		t.Errorf("expected two logged failures, got %d:\n%s", got, buf.String())
	}

	onBrokerConnect(nil)
}
