package main

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/usblink/cdcacm/pkg/cdcacm"
)

var (
	flagOpen        string
	flagVID         string
	flagPID         string
	flagDescription string
	flagSerial      string
	flagIndex       uint
	flagBus         uint8
	flagAddr        uint8
	flagProfile     string

	flagBaud         uint32
	flagDataBits     uint8
	flagStopBits     string
	flagParity       string
	flagReadTimeout  time.Duration
	flagWriteTimeout time.Duration
	flagDetach       string
	flagDTR          bool
	flagRTS          bool
)

// openSession builds a Session from the persistent flags (with profile
// defaults overlaid), opens the selected device and applies the line
// configuration. The caller owns the session and must Destroy it.
func openSession() (*cdcacm.Session, error) {
	if err := applyProfile(flagProfile); err != nil {
		return nil, err
	}
	lc, err := lineCodingFromFlags()
	if err != nil {
		return nil, err
	}
	detach, err := detachModeFromFlags()
	if err != nil {
		return nil, err
	}

	s, err := cdcacm.New()
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			s.Destroy()
		}
	}()

	s.ReadTimeout = flagReadTimeout
	s.WriteTimeout = flagWriteTimeout
	s.DetachMode = detach

	if err := openTarget(s); err != nil {
		return nil, err
	}
	if err := s.SetLineCoding(lc); err != nil {
		return nil, fmt.Errorf("could not set line coding: %w", err)
	}
	if err := s.SetDTRRTS(flagDTR, flagRTS); err != nil {
		return nil, fmt.Errorf("could not set DTR/RTS: %w", err)
	}
	glog.V(1).Infof("Opened device, %s, DTR=%v RTS=%v", lc, flagDTR, flagRTS)

	ok = true
	return s, nil
}

// openTarget opens the device the selection flags point at. Without any
// selection flags the bus must hold exactly one CDC-ACM device.
func openTarget(s *cdcacm.Session) error {
	switch {
	case flagOpen != "":
		return s.OpenString(flagOpen)

	case flagBus != 0 || flagAddr != 0:
		return s.OpenBusAddr(flagBus, flagAddr)

	case flagVID != "" || flagPID != "":
		vid, pid, err := idsFromFlags()
		if err != nil {
			return err
		}
		return s.OpenDescIndex(vid, pid, flagDescription, flagSerial, flagIndex)

	default:
		list, err := s.FindAll(0, 0)
		if err != nil {
			return err
		}
		defer list.Free()
		switch len(list) {
		case 0:
			return fmt.Errorf("no CDC-ACM device found")
		case 1:
			return s.Open(list[0])
		default:
			return fmt.Errorf("%d CDC-ACM devices found, select one with --open, --vid/--pid or --bus/--addr", len(list))
		}
	}
}

func idsFromFlags() (uint16, uint16, error) {
	if flagVID == "" || flagPID == "" {
		return 0, 0, fmt.Errorf("--vid and --pid must be given together")
	}
	vid, err := parseID(flagVID, "vendor id")
	if err != nil {
		return 0, 0, err
	}
	pid, err := parseID(flagPID, "product id")
	if err != nil {
		return 0, 0, err
	}
	return vid, pid, nil
}

func parseID(s, what string) (uint16, error) {
	v, err := parseNumber(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	if v > 0xffff {
		return 0, fmt.Errorf("%s %q out of range", what, s)
	}
	return uint16(v), nil
}

func lineCodingFromFlags() (cdcacm.LineCoding, error) {
	lc := cdcacm.LineCoding{
		BaudRate: flagBaud,
		DataBits: flagDataBits,
	}
	switch flagStopBits {
	case "1":
		lc.StopBits = cdcacm.StopBits1
	case "1.5":
		lc.StopBits = cdcacm.StopBits15
	case "2":
		lc.StopBits = cdcacm.StopBits2
	default:
		return lc, fmt.Errorf("invalid stop bits %q (want 1, 1.5 or 2)", flagStopBits)
	}
	switch flagParity {
	case "none":
		lc.Parity = cdcacm.ParityNone
	case "odd":
		lc.Parity = cdcacm.ParityOdd
	case "even":
		lc.Parity = cdcacm.ParityEven
	case "mark":
		lc.Parity = cdcacm.ParityMark
	case "space":
		lc.Parity = cdcacm.ParitySpace
	default:
		return lc, fmt.Errorf("invalid parity %q (want none, odd, even, mark or space)", flagParity)
	}
	return lc, nil
}

func detachModeFromFlags() (cdcacm.DetachMode, error) {
	switch flagDetach {
	case "auto":
		return cdcacm.DetachAuto, nil
	case "none":
		return cdcacm.DetachNone, nil
	case "reattach":
		return cdcacm.DetachAutoReattach, nil
	}
	return 0, fmt.Errorf("invalid detach mode %q (want auto, none or reattach)", flagDetach)
}
