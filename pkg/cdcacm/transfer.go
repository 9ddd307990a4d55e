package cdcacm

import "github.com/usblink/cdcacm/pkg/usberr"

// Read moves up to len(p) bytes from the device's bulk IN endpoint into p.
// A transfer that hits ReadTimeout after moving some data reports the short
// count as success; a timeout with nothing moved reports usberr.Timeout.
func (s *Session) Read(p []byte) (int, error) {
	if err := s.ensureUsable("read"); err != nil {
		return 0, err
	}
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	n, err := s.handle.BulkIn(s.layout.In, p, s.ReadTimeout)
	if err != nil {
		if n > 0 && usberr.CodeOf(err) == usberr.Timeout {
			return n, nil
		}
		return n, s.fail("bulk", err)
	}
	return n, nil
}

// Write moves up to len(p) bytes from p to the device's bulk OUT endpoint
// and reports how many were accepted. Timeouts after a partial transfer are
// normalized the same way as in Read.
func (s *Session) Write(p []byte) (int, error) {
	if err := s.ensureUsable("write"); err != nil {
		return 0, err
	}
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	n, err := s.handle.BulkOut(s.layout.Out, p, s.WriteTimeout)
	if err != nil {
		if n > 0 && usberr.CodeOf(err) == usberr.Timeout {
			return n, nil
		}
		return n, s.fail("bulk", err)
	}
	return n, nil
}
