package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "acmctl",
	Short: "acmctl talks to USB CDC-ACM serial devices",
	Long: `acmctl drives USB CDC-ACM ("virtual serial", /dev/ttyACM*) devices directly
through libusb instead of a kernel tty: list candidates, probe their endpoint
layout, configure the line and move raw bytes in both directions.

Devices are selected with --open (a selector string), --bus/--addr,
--vid/--pid plus optional string filters, or not at all when exactly one
CDC-ACM device is plugged in.`,
	SilenceUsage: true,
}

func main() {
	listCmd.Flags().BoolVarP(&listPorts, "ports", "p", false, "List operating-system serial ports instead of scanning USB")
	sendCmd.Flags().StringVarP(&sendText, "text", "t", "", "Send the given text instead of a file or stdin")
	sendCmd.Flags().StringVar(&sendPattern, "pattern", "", "Stream the given byte (e.g. 0x55) continuously until interrupted")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&flagOpen, "open", "o", "", "Device selector: d:<bus>/<addr>, i:<vid>:<pid>[:<index>] or s:<vid>:<pid>:<serial>")
	rootCmd.PersistentFlags().StringVar(&flagVID, "vid", "", "Vendor ID to match (0x-prefixed hex or decimal)")
	rootCmd.PersistentFlags().StringVar(&flagPID, "pid", "", "Product ID to match")
	rootCmd.PersistentFlags().StringVar(&flagDescription, "description", "", "Product description string to match")
	rootCmd.PersistentFlags().StringVar(&flagSerial, "serial", "", "Serial number string to match")
	rootCmd.PersistentFlags().UintVar(&flagIndex, "index", 0, "Zero-based index among matching devices")
	rootCmd.PersistentFlags().Uint8Var(&flagBus, "bus", 0, "Bus number of the device to open")
	rootCmd.PersistentFlags().Uint8Var(&flagAddr, "addr", 0, "Device address on the bus")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Profile from profiles.json to take defaults from")
	rootCmd.PersistentFlags().Uint32Var(&flagBaud, "baud", 115200, "Baud rate")
	rootCmd.PersistentFlags().Uint8Var(&flagDataBits, "databits", 8, "Data bits (5, 6, 7, 8 or 16)")
	rootCmd.PersistentFlags().StringVar(&flagStopBits, "stopbits", "1", "Stop bits (1, 1.5 or 2)")
	rootCmd.PersistentFlags().StringVar(&flagParity, "parity", "none", "Parity (none, odd, even, mark or space)")
	rootCmd.PersistentFlags().DurationVar(&flagReadTimeout, "read-timeout", 5*time.Second, "Bulk read timeout")
	rootCmd.PersistentFlags().DurationVar(&flagWriteTimeout, "write-timeout", 5*time.Second, "Bulk write and control transfer timeout")
	rootCmd.PersistentFlags().StringVar(&flagDetach, "detach", "auto", "Kernel driver handling: auto, none or reattach")
	rootCmd.PersistentFlags().BoolVar(&flagDTR, "dtr", true, "Assert DTR after opening")
	rootCmd.PersistentFlags().BoolVar(&flagRTS, "rts", true, "Assert RTS after opening")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(sendCmd)
	if rootCmd.Execute() != nil {
		os.Exit(1)
	}
}

func init() {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
}

func parseNumber(s string) (uint32, error) {
	var err error
	var res uint64
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		res, err = strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid number")
		}
	} else {
		res, err = strconv.ParseUint(s, 10, 32)
		if err != nil {
			res, err = strconv.ParseUint(s, 16, 32)
			if err != nil {
				return 0, fmt.Errorf("invalid number")
			}
		}
	}
	return uint32(res), nil
}
