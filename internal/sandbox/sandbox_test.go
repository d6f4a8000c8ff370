package sandbox

import "testing"

func TestDemuxOutput(t *testing.T) {
	frame := func(streamType byte, payload string) []byte {
		n := len(payload)
		header := []byte{streamType, 0, 0, 0,
			byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
		return append(header, payload...)
	}

	t.Run("separates streams", func(t *testing.T) {
		data := append(frame(1, "hello\n"), frame(2, "oops\n")...)
		stdout, stderr := demuxOutput(data)
		if stdout != "hello\n" {
			t.Errorf("stdout = %q, want %q", stdout, "hello\n")
		}
		if stderr != "oops\n" {
			t.Errorf("stderr = %q, want %q", stderr, "oops\n")
		}
	})

	t.Run("multiple frames concatenate", func(t *testing.T) {
		data := append(frame(1, "a"), frame(1, "b")...)
		stdout, _ := demuxOutput(data)
		if stdout != "ab" {
			t.Errorf("stdout = %q, want %q", stdout, "ab")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		stdout, stderr := demuxOutput(nil)
		if stdout != "" || stderr != "" {
			t.Errorf("got (%q, %q), want empty", stdout, stderr)
		}
	})

	t.Run("truncated frame clamps to available bytes", func(t *testing.T) {
		data := frame(1, "full payload")
		data = data[:len(data)-4]
		stdout, _ := demuxOutput(data)
		if stdout != "full pay" {
			t.Errorf("stdout = %q, want %q", stdout, "full pay")
		}
	})

	t.Run("default config limits", func(t *testing.T) {
		cfg := DefaultConfig("python:3.12-alpine")
		if !cfg.NetworkOff {
			t.Error("network must be disabled by default")
		}
		if cfg.PidsLimit <= 0 {
			t.Error("pids limit must be set")
		}
	})
}
