package api

import (
	"encoding/json"
	"net/http"
	"sync"
)

type readinessState struct {
	mu               sync.RWMutex
	engineReady      bool
	mqttConnected    bool
	mqttOptional     bool
	journalConnected bool
	journalOptional  bool
}

var readiness = &readinessState{mqttOptional: true, journalOptional: true}

// SetEngineReady marks the tick loop as running.
func SetEngineReady(ready bool) {
	readiness.mu.Lock()
	readiness.engineReady = ready
	readiness.mu.Unlock()
}

// SetMQTTConnected records broker connectivity.
func SetMQTTConnected(connected bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mu.Unlock()
}

// SetMQTTOptional controls whether a missing broker fails readiness.
func SetMQTTOptional(optional bool) {
	readiness.mu.Lock()
	readiness.mqttOptional = optional
	readiness.mu.Unlock()
}

// SetJournalConnected records journal connectivity.
func SetJournalConnected(connected bool) {
	readiness.mu.Lock()
	readiness.journalConnected = connected
	readiness.mu.Unlock()
}

// SetJournalOptional controls whether a missing journal fails readiness.
func SetJournalOptional(optional bool) {
	readiness.mu.Lock()
	readiness.journalOptional = optional
	readiness.mu.Unlock()
}

func connectivity() (engine, mqtt, journal bool) {
	readiness.mu.RLock()
	defer readiness.mu.RUnlock()
	return readiness.engineReady, readiness.mqttConnected, readiness.journalConnected
}

// CheckStatus is one dependency in a readiness report.
type CheckStatus struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

type ReadinessResponse struct {
	Ready  bool                   `json:"ready"`
	Checks map[string]CheckStatus `json:"checks"`
}

func check(ok, optional bool) CheckStatus {
	if ok {
		return CheckStatus{Status: "ok", Optional: optional}
	}
	if optional {
		return CheckStatus{Status: "degraded", Optional: true}
	}
	return CheckStatus{Status: "down"}
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	resp := ReadinessResponse{
		Ready: readiness.engineReady &&
			(readiness.mqttConnected || readiness.mqttOptional) &&
			(readiness.journalConnected || readiness.journalOptional),
		Checks: map[string]CheckStatus{
			"engine":  check(readiness.engineReady, false),
			"mqtt":    check(readiness.mqttConnected, readiness.mqttOptional),
			"journal": check(readiness.journalConnected, readiness.journalOptional),
		},
	}
	readiness.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !resp.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
