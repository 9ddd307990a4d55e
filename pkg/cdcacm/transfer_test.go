package cdcacm

import (
	"bytes"
	"testing"

	"github.com/usblink/cdcacm/pkg/usberr"
)

func TestReadWrite(t *testing.T) {
	s, dev := openTestSession(t)
	dev.InData = []byte("pong")
	dev.Journal = nil

	buf := make([]byte, 16)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "pong" {
		t.Errorf("Read = %q, want %q", buf[:n], "pong")
	}

	n, err = s.Write([]byte("ping"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 4 || !bytes.Equal(dev.OutData, []byte("ping")) {
		t.Errorf("Write moved %d bytes, device got %q", n, dev.OutData)
	}

	// Reads hit the IN endpoint, writes the OUT endpoint.
	want := []string{"bulk_in 81 16", "bulk_out 02 4"}
	for i, w := range want {
		if dev.Journal[i] != w {
			t.Errorf("journal[%d] = %q, want %q", i, dev.Journal[i], w)
		}
	}
}

// A timeout that moved data is a short success; a timeout that moved
// nothing is an error.
func TestReadTimeoutNormalization(t *testing.T) {
	s, dev := openTestSession(t)

	dev.BulkInFunc = func(p []byte) (int, error) { return 37, usberr.Timeout }
	n, err := s.Read(make([]byte, 64))
	if n != 37 || err != nil {
		t.Errorf("partial read = (%d, %v), want (37, nil)", n, err)
	}

	dev.BulkInFunc = func(p []byte) (int, error) { return 0, usberr.Timeout }
	_, err = s.Read(make([]byte, 64))
	if usberr.CodeOf(err) != usberr.Timeout {
		t.Errorf("empty read = %v, want TIMEOUT", err)
	}
}

func TestWriteTimeoutNormalization(t *testing.T) {
	s, dev := openTestSession(t)

	dev.BulkOutFunc = func(p []byte) (int, error) { return 3, usberr.Timeout }
	n, err := s.Write([]byte("hello"))
	if n != 3 || err != nil {
		t.Errorf("partial write = (%d, %v), want (3, nil)", n, err)
	}

	dev.BulkOutFunc = func(p []byte) (int, error) { return 0, usberr.Timeout }
	_, err = s.Write([]byte("hello"))
	if usberr.CodeOf(err) != usberr.Timeout {
		t.Errorf("empty write = %v, want TIMEOUT", err)
	}
}

// Only timeouts are normalized; other failures surface even with bytes
// moved.
func TestReadErrorPassesThrough(t *testing.T) {
	s, dev := openTestSession(t)

	dev.BulkInFunc = func(p []byte) (int, error) { return 5, usberr.Pipe }
	n, err := s.Read(make([]byte, 64))
	if usberr.CodeOf(err) != usberr.Pipe {
		t.Errorf("err = %v, want PIPE", err)
	}
	if n != 5 {
		t.Errorf("n = %d, want 5", n)
	}
}
