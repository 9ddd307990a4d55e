package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()

	// Missing file is not an error, just no profiles.
	profiles, err := loadProfiles(filepath.Join(dir, "nope.json"))
	if err != nil {
		t.Fatalf("loadProfiles on missing file: %v", err)
	}
	if len(profiles) != 0 {
		t.Errorf("profiles = %v, want none", profiles)
	}

	path := filepath.Join(dir, "profiles.json")
	data := `{
		"nucleo": {"device": "i:0x0483:0x374b", "baud": 9600, "parity": "even", "dtr": false},
		"modem": {"stopbits": "2", "read_timeout": "250ms"}
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	profiles, err = loadProfiles(path)
	if err != nil {
		t.Fatalf("loadProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("got %d profiles, want 2", len(profiles))
	}
	p := profiles["nucleo"]
	if p.Device != "i:0x0483:0x374b" || p.Baud != 9600 || p.Parity != "even" {
		t.Errorf("nucleo profile = %+v", p)
	}
	if p.DTR == nil || *p.DTR {
		t.Errorf("nucleo dtr = %v, want false", p.DTR)
	}

	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadProfiles(path); err == nil {
		t.Error("loadProfiles accepted broken JSON")
	}
}

func TestProfileApply(t *testing.T) {
	resetFlags := func() {
		flagOpen = ""
		flagVID = ""
		flagPID = ""
		flagBaud = 115200
		flagDataBits = 8
		flagStopBits = "1"
		flagParity = "none"
		flagReadTimeout = 5 * time.Second
		flagWriteTimeout = 5 * time.Second
		flagDetach = "auto"
		flagDTR = true
		flagRTS = true
	}
	no := func(string) bool { return false }

	f := false
	p := profile{
		Device:      "i:0x0483:0x374b",
		Baud:        9600,
		StopBits:    "2",
		Parity:      "odd",
		ReadTimeout: "250ms",
		DTR:         &f,
	}

	// Nothing set on the command line: the profile fills everything it
	// carries and leaves the rest at defaults.
	resetFlags()
	if err := p.apply(no); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if flagOpen != "i:0x0483:0x374b" || flagBaud != 9600 || flagStopBits != "2" || flagParity != "odd" {
		t.Errorf("flags after apply = %q %d %q %q", flagOpen, flagBaud, flagStopBits, flagParity)
	}
	if flagReadTimeout != 250*time.Millisecond {
		t.Errorf("read timeout = %v, want 250ms", flagReadTimeout)
	}
	if flagDTR {
		t.Error("dtr not taken from profile")
	}
	if flagDataBits != 8 || flagWriteTimeout != 5*time.Second || !flagRTS {
		t.Error("profile touched flags it does not carry")
	}

	// Explicit flags win over the profile.
	resetFlags()
	err := p.apply(func(name string) bool { return name == "baud" || name == "dtr" })
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if flagBaud != 115200 || !flagDTR {
		t.Errorf("explicit flags overridden: baud=%d dtr=%v", flagBaud, flagDTR)
	}
	if flagStopBits != "2" {
		t.Error("unset flag not filled from profile")
	}

	// Any explicit device selection disables the profile's selection as a
	// whole.
	resetFlags()
	sel := profile{Device: "d:1/4", VID: "0x0483", PID: "0x374b"}
	if err := sel.apply(func(name string) bool { return name == "bus" }); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if flagOpen != "" || flagVID != "" || flagPID != "" {
		t.Errorf("profile selection applied despite explicit --bus: %q %q %q", flagOpen, flagVID, flagPID)
	}

	// Without explicit selection the profile's vid/pid are taken.
	resetFlags()
	if err := sel.apply(no); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if flagVID != "0x0483" || flagPID != "0x374b" {
		t.Errorf("vid/pid not taken from profile: %q %q", flagVID, flagPID)
	}

	// Bad durations surface as errors.
	resetFlags()
	bad := profile{ReadTimeout: "soonish"}
	if err := bad.apply(no); err == nil {
		t.Error("apply accepted a bad duration")
	}
}
