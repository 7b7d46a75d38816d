// Package observability captures opt-in diagnostics toggles so the feed
// server only exposes profiling endpoints when a run asks for them.
package observability

type Config struct {
	// EnablePprofTrace mounts net/http/pprof handlers on the feed server.
	EnablePprofTrace bool
}
