package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/usblink/cdcacm/pkg/usberr"
)

var catCmd = &cobra.Command{
	Use:   "cat",
	Short: "Stream bytes from a device to stdout",
	Long: `Opens the selected device and copies everything it sends to stdout until
interrupted. Read timeouts that carry no data are retried silently, so an
idle line just keeps the command waiting.`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Destroy()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		buf := make([]byte, 4096)
		total := 0
		for {
			select {
			case <-ctx.Done():
				glog.V(1).Infof("Interrupted after %d bytes", total)
				return nil
			default:
			}

			n, err := s.Read(buf)
			if err != nil {
				if usberr.CodeOf(err) == usberr.Timeout {
					continue
				}
				return fmt.Errorf("read failed after %d bytes: %w", total, err)
			}
			if n == 0 {
				continue
			}
			if _, err := os.Stdout.Write(buf[:n]); err != nil {
				return err
			}
			total += n
		}
	},
}
