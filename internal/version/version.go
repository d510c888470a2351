// ABOUTME: Version and product identification constants
// ABOUTME: Reported in logs, the TUI header and the node API
package version

const (
	Version      = "0.4.0"
	Product      = "VILLASlive"
	Manufacturer = "Institute for Automation of Complex Power Systems"
)
