//go:build darwin

package darwin

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/epapersync/epapersync/wifi"
)

var currentNetworkRe = regexp.MustCompile(`Current Wi-Fi Network: (.+)`)

// parseCurrentNetwork extracts the SSID from -getairportnetwork output.
// "You are not associated with an AirPort network" and anything else that
// doesn't match the expected line yields "".
func parseCurrentNetwork(output string) string {
	matches := currentNetworkRe.FindStringSubmatch(output)
	if len(matches) < 2 {
		return ""
	}
	return strings.TrimSpace(matches[1])
}

// parseVisibleNetworks extracts SSIDs from `system_profiler SPAirPortDataType`
// output, covering both the current network and the "Other Local Wi-Fi
// Networks" section.
func parseVisibleNetworks(output string) []string {
	var ssids []string
	seen := make(map[string]bool)

	inNetworkSection := false
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if strings.Contains(line, "Current Network Information:") ||
			strings.Contains(line, "Other Local Wi-Fi Networks:") {
			inNetworkSection = true
			continue
		}
		// Another interface stanza (like awdl0) ends the listing.
		if strings.HasPrefix(strings.TrimSpace(line), "awdl") {
			break
		}
		if !inNetworkSection {
			continue
		}

		// Network names sit at 12-space indent and end with a bare colon;
		// property lines ("Signal / Noise: ...") contain ": " instead.
		trimmed := strings.TrimSpace(line)
		leadingSpaces := len(line) - len(strings.TrimLeft(line, " "))
		if leadingSpaces != 12 || !strings.HasSuffix(trimmed, ":") || strings.Contains(trimmed, ": ") {
			continue
		}

		ssid := strings.TrimSuffix(trimmed, ":")
		if ssid != "" && !seen[ssid] {
			seen[ssid] = true
			ssids = append(ssids, ssid)
		}
	}
	return ssids
}

// findWifiDevice parses `networksetup -listallhardwareports` output to find
// the Wi-Fi device name (e.g. en0).
func findWifiDevice(output string) (string, error) {
	for _, stanza := range strings.Split(output, "\n\n") {
		var device string
		isWifiPort := false
		for _, line := range strings.Split(stanza, "\n") {
			if strings.HasPrefix(line, "Hardware Port: ") {
				port := strings.TrimPrefix(line, "Hardware Port: ")
				if strings.Contains(port, "Wi-Fi") || strings.Contains(port, "AirPort") {
					isWifiPort = true
				}
			}
			if strings.HasPrefix(line, "Device: ") {
				device = strings.TrimPrefix(line, "Device: ")
			}
		}
		if isWifiPort && device != "" {
			return device, nil
		}
	}
	return "", fmt.Errorf("no Wi-Fi interface found: %w", wifi.ErrNotFound)
}
