package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/usblink/cdcacm/pkg/cdcacm"
)

var (
	sendText    string
	sendPattern string
)

var sendCmd = &cobra.Command{
	Use:   "send [file]",
	Short: "Send bytes to a device",
	Long: `Sends a file, the --text argument, or stdin to the selected device's bulk
OUT endpoint. With --pattern the given byte is streamed continuously until
interrupted; a pattern of 0x55 at 8N1 gives a square wave on TX.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var src io.Reader
		switch {
		case sendPattern != "":
			// handled below, after the device is open
		case sendText != "":
			src = strings.NewReader(sendText)
		case len(args) == 1:
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("could not open file for reading: %w", err)
			}
			defer f.Close()
			src = f
		default:
			src = os.Stdin
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Destroy()

		if sendPattern != "" {
			b, err := parseNumber(sendPattern)
			if err != nil || b > 0xff {
				return fmt.Errorf("pattern must be an 8 bit value")
			}
			return streamPattern(cmd.Context(), s, byte(b))
		}

		buf := make([]byte, 4096)
		total := 0
		start := time.Now()
		for {
			n, rerr := src.Read(buf)
			for wrote := 0; wrote < n; {
				m, err := s.Write(buf[wrote:n])
				if err != nil {
					return fmt.Errorf("write failed after %d bytes: %w", total+wrote, err)
				}
				wrote += m
				total += m
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return rerr
			}
		}
		glog.Infof("Sent %d bytes in %.1fs", total, time.Since(start).Seconds())
		return nil
	},
}

// streamPattern writes an endless stream of one byte until interrupted.
// Chunks are sized roughly to the line rate so the signal check stays
// responsive at low baud rates.
func streamPattern(ctx context.Context, s *cdcacm.Session, b byte) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	chunk := int(flagBaud / 512)
	if chunk < 1 {
		chunk = 1
	}
	if chunk > 1024 {
		chunk = 1024
	}
	buf := bytes.Repeat([]byte{b}, chunk)
	total := 0
	for {
		select {
		case <-ctx.Done():
			glog.V(1).Infof("Interrupted after %d bytes", total)
			return nil
		default:
		}
		n, err := s.Write(buf)
		if err != nil {
			return fmt.Errorf("write failed after %d bytes: %w", total, err)
		}
		total += n
	}
}
