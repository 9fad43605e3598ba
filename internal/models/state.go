package models

import "time"

// InstallRecord captures what is installed for one manifest key.
// Presence of a record is authoritative for "is installed".
type InstallRecord struct {
	SHA256      string    `json:"sha256,omitempty"`
	URL         string    `json:"url"`
	InstalledAt time.Time `json:"installed_at"`
}

// InstallState maps slash-joined manifest keys to install records.
type InstallState map[string]InstallRecord

// Clone returns a copy of the state map.
func (s InstallState) Clone() InstallState {
	out := make(InstallState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Pins maps tool names to pinned version strings.
type Pins map[string]string

// Clone returns a copy of the pin map.
func (p Pins) Clone() Pins {
	out := make(Pins, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// BackupSnapshot is a point-in-time copy of install state and pins.
// Snapshot files are write-once and never auto-deleted.
type BackupSnapshot struct {
	Timestamp time.Time    `json:"timestamp"`
	State     InstallState `json:"state"`
	Pins      Pins         `json:"pins"`
}

// ProfileTool is one entry in an exported profile.
type ProfileTool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Pinned  bool   `json:"pinned"`
}

// Profile is a portable description of one platform's installed set,
// used to replay installs on a matching platform.
type Profile struct {
	Platform   string        `json:"platform"`
	Arch       string        `json:"arch"`
	ExportedAt time.Time     `json:"exported_at"`
	Tools      []ProfileTool `json:"tools"`
}

// ToolInfo summarizes an installed tool for listing.
type ToolInfo struct {
	Name        string    `json:"name"`
	Platform    string    `json:"platform"`
	Arch        string    `json:"arch"`
	Version     string    `json:"version"`
	InstalledAt time.Time `json:"installed_at"`
	Pinned      bool      `json:"pinned"`
}

// AvailableTool summarizes a manifest tool for listing.
type AvailableTool struct {
	Name      string   `json:"name"`
	Installed bool     `json:"installed"`
	Platforms []string `json:"platforms"`
}
