package monitoring

import "time"

// Profile selects what a Monitor samples and how often.
type Profile struct {
	Interval               time.Duration `json:"interval"                 toml:"interval"`
	CollectCPU             bool          `json:"collect_cpu"              toml:"collect_cpu"`
	CollectMemory          bool          `json:"collect_memory"           toml:"collect_memory"`
	CollectDiskIO          bool          `json:"collect_disk_io"          toml:"collect_disk_io"`
	CollectNetworkIO       bool          `json:"collect_network_io"       toml:"collect_network_io"`
	CollectThreads         bool          `json:"collect_threads"          toml:"collect_threads"`
	CollectFileDescriptors bool          `json:"collect_file_descriptors" toml:"collect_file_descriptors"`
	// HistorySize bounds the samples kept in memory for Aggregate. Zero keeps
	// none.
	HistorySize int `json:"history_size" toml:"history_size"`
}

func StandardProfile() Profile {
	return Profile{
		Interval:               10 * time.Second,
		CollectCPU:             true,
		CollectMemory:          true,
		CollectDiskIO:          true,
		CollectNetworkIO:       true,
		CollectThreads:         true,
		CollectFileDescriptors: true,
		HistorySize:            360,
	}
}

func MinimalProfile() Profile {
	return Profile{
		Interval:      60 * time.Second,
		CollectCPU:    true,
		CollectMemory: true,
	}
}

// ProfileByName maps a configuration value to a profile, falling back to the
// standard one.
func ProfileByName(name string) Profile {
	switch name {
	case "minimal":
		return MinimalProfile()
	case "intensive":
		p := StandardProfile()
		p.Interval = time.Second
		p.HistorySize = 1000

		return p
	default:
		return StandardProfile()
	}
}
