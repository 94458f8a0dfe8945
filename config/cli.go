package config

// Cli holds coordinatord's parsed flags (spec §6).
type Cli struct {
	DataDir         string
	AdminAddr       string
	MaxJobsInFlight int
	PollMillis      int
}
