package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// profile is a named set of defaults for device selection and line
// configuration, stored as a JSON object per profile:
//
//	~/.config/acmctl/profiles.json
//	{
//	  "nucleo": {"device": "i:0x0483:0x374b", "baud": 115200, "dtr": true}
//	}
//
// Values the user set explicitly on the command line always win.
type profile struct {
	Device       string `json:"device,omitempty"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	Description  string `json:"description,omitempty"`
	Serial       string `json:"serial,omitempty"`
	Baud         uint32 `json:"baud,omitempty"`
	DataBits     uint8  `json:"databits,omitempty"`
	StopBits     string `json:"stopbits,omitempty"`
	Parity       string `json:"parity,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	Detach       string `json:"detach,omitempty"`
	DTR          *bool  `json:"dtr,omitempty"`
	RTS          *bool  `json:"rts,omitempty"`
}

func profilesPath() string {
	return filepath.Join(xdg.ConfigHome, "acmctl", "profiles.json")
}

func loadProfiles(path string) (map[string]profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]profile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read profiles: %w", err)
	}
	var profiles map[string]profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	return profiles, nil
}

// applyProfile overlays the named profile onto all flags the user did not
// set explicitly. An empty name is a no-op.
func applyProfile(name string) error {
	if name == "" {
		return nil
	}
	profiles, err := loadProfiles(profilesPath())
	if err != nil {
		return err
	}
	p, ok := profiles[name]
	if !ok {
		return fmt.Errorf("no profile %q in %s", name, profilesPath())
	}
	return p.apply(rootCmd.PersistentFlags().Changed)
}

// apply copies profile values into the flag variables. changed reports
// whether the user set the named flag on the command line; such flags are
// left alone. The profile's device selection is used only when no selection
// flag was given at all.
func (p *profile) apply(changed func(name string) bool) error {
	selected := changed("open") || changed("vid") || changed("pid") ||
		changed("bus") || changed("addr") || changed("serial") || changed("description")
	if !selected {
		if p.Device != "" {
			flagOpen = p.Device
		}
		if p.VID != "" {
			flagVID = p.VID
		}
		if p.PID != "" {
			flagPID = p.PID
		}
		if p.Description != "" {
			flagDescription = p.Description
		}
		if p.Serial != "" {
			flagSerial = p.Serial
		}
	}
	if p.Baud != 0 && !changed("baud") {
		flagBaud = p.Baud
	}
	if p.DataBits != 0 && !changed("databits") {
		flagDataBits = p.DataBits
	}
	if p.StopBits != "" && !changed("stopbits") {
		flagStopBits = p.StopBits
	}
	if p.Parity != "" && !changed("parity") {
		flagParity = p.Parity
	}
	if p.ReadTimeout != "" && !changed("read-timeout") {
		d, err := time.ParseDuration(p.ReadTimeout)
		if err != nil {
			return fmt.Errorf("profile read_timeout: %w", err)
		}
		flagReadTimeout = d
	}
	if p.WriteTimeout != "" && !changed("write-timeout") {
		d, err := time.ParseDuration(p.WriteTimeout)
		if err != nil {
			return fmt.Errorf("profile write_timeout: %w", err)
		}
		flagWriteTimeout = d
	}
	if p.Detach != "" && !changed("detach") {
		flagDetach = p.Detach
	}
	if p.DTR != nil && !changed("dtr") {
		flagDTR = *p.DTR
	}
	if p.RTS != nil && !changed("rts") {
		flagRTS = *p.RTS
	}
	return nil
}
