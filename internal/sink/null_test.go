package sink

import "testing"

func TestNullSinkAcceptsAndDiscards(t *testing.T) {
	n := NewNull()
	cfg, err := n.Open("", Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if cfg.SampleRate != SampleRatePreference[0] {
		t.Fatalf("negotiated rate = %d, want %d", cfg.SampleRate, SampleRatePreference[0])
	}

	if err := n.WriteBuffer(make([]int16, 128)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := n.FramesWritten(); got != 128 {
		t.Fatalf("frames written = %d, want 128", got)
	}

	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := n.WriteBuffer(make([]int16, 1)); err != ErrNotOpen {
		t.Fatalf("write after close = %v, want ErrNotOpen", err)
	}
}

func TestNullProbeAlwaysAvailable(t *testing.T) {
	n := NewNull()
	info := n.Probe("anything")
	if !info.Available {
		t.Fatal("null backend should always probe available")
	}
}

func TestSelectOpensNullBackend(t *testing.T) {
	s, cfg, err := Open(BackendNull, "", Config{})
	if err != nil {
		t.Fatalf("open null backend: %v", err)
	}
	if s.Name() != "null" {
		t.Fatalf("backend = %s, want null", s.Name())
	}
	if cfg.SampleRate == 0 {
		t.Fatal("expected a negotiated sample rate")
	}
	_ = s.Close()
}

func TestSelectRejectsUnknownBackend(t *testing.T) {
	if _, _, err := Open("not-a-backend", "", Config{}); err == nil {
		t.Fatal("expected an error for an unknown backend name")
	}
}
