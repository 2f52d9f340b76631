package sink

import "fmt"

// Backend names accepted by Open.
const (
	BackendAuto      = "auto"
	BackendMalgo     = "malgo"
	BackendPortAudio = "portaudio"
	BackendNull      = "null"
)

// candidates is the fallback order used when the requested backend is
// "auto" or unavailable: malgo, then portaudio, then null.
func candidates() []Sink {
	return []Sink{NewMalgo(), NewPortAudio(), NewNull()}
}

// Open opens the requested backend, falling back through malgo -> portaudio
// -> null in order when the request is BackendAuto or the requested backend
// fails to open. Returns the opened Sink and its negotiated Config.
func Open(backend, device string, preferred Config) (Sink, Config, error) {
	var pool []Sink
	switch backend {
	case "", BackendAuto:
		pool = candidates()
	case BackendMalgo:
		pool = []Sink{NewMalgo(), NewPortAudio(), NewNull()}
	case BackendPortAudio:
		pool = []Sink{NewPortAudio(), NewMalgo(), NewNull()}
	case BackendNull:
		pool = []Sink{NewNull()}
	default:
		return nil, Config{}, fmt.Errorf("sink: unknown backend %q: %w", backend, ErrBackendUnavailable)
	}

	var lastErr error
	for _, s := range pool {
		cfg, err := s.Open(device, preferred)
		if err == nil {
			return s, cfg, nil
		}
		lastErr = err
	}
	return nil, Config{}, fmt.Errorf("sink: no backend available: %w", lastErr)
}
