package api

import (
	"encoding/json"
	"net/http"
)

// Set at build time with -ldflags.
var (
	Version   = "0.0.0"
	Commit    = "ffffffff"
	BuildTime = "1970-01-01_00:00:00"
)

type HealthInfo struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	Description string `json:"description"`
	BuildTime   string `json:"build_time"`
	InstanceID  string `json:"instance_id"`
}

func Health(service, instanceID string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		res := HealthInfo{
			Status:      "pass",
			Version:     Version,
			Commit:      Commit,
			Description: service + " service",
			BuildTime:   BuildTime,
			InstanceID:  instanceID,
		}

		w.Header().Set("Content-Type", "application/health+json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(res)
	}
}
