//go:build darwin

package darwin

import "testing"

func TestFindWifiDevice(t *testing.T) {
	mockedOutput := `Hardware Port: Wi-Fi
Device: en0
Ethernet Address: a1:b2:c3:d4:e5:f6

Hardware Port: Bluetooth PAN
Device: en8
Ethernet Address: a1:b2:c3:d4:e5:f7

Hardware Port: Thunderbolt Bridge
Device: bridge0
Ethernet Address: a1:b2:c3:d4:e5:f8`

	device, err := findWifiDevice(mockedOutput)
	if err != nil {
		t.Fatalf("findWifiDevice returned an error: %v", err)
	}
	if device != "en0" {
		t.Fatalf(`findWifiDevice returned "%s", want "en0"`, device)
	}

	if _, err := findWifiDevice("Hardware Port: Ethernet\nDevice: en1"); err == nil {
		t.Fatal("findWifiDevice should fail when no Wi-Fi port is present")
	}
}

func TestParseCurrentNetwork(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"associated", "Current Wi-Fi Network: HomeNet\n", "HomeNet"},
		{"unassociated", "You are not associated with an AirPort network.\n", ""},
		{"garbled", "airportd: unexpected state 0x3f\n", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseCurrentNetwork(tt.output); got != tt.want {
				t.Errorf("parseCurrentNetwork(%q) = %q, want %q", tt.output, got, tt.want)
			}
		})
	}
}

func TestParseVisibleNetworks(t *testing.T) {
	mockedOutput := `Wi-Fi:

      Software Versions:
          CoreWLAN: 16.0 (1657)
      Interfaces:
        en0:
          Card Type: Wi-Fi
          Status: Connected
          Current Network Information:
            HomeNet:
              PHY Mode: 802.11ax
              Signal / Noise: -48 dBm / -92 dBm
          Other Local Wi-Fi Networks:
            E-Paper:
              PHY Mode: 802.11n
              Signal / Noise: -60 dBm / -92 dBm
            Neighbors 5G:
              PHY Mode: 802.11ac
              Signal / Noise: -80 dBm / -92 dBm
        awdl0:
          Card Type: Wi-Fi
          Status: Connected`

	ssids := parseVisibleNetworks(mockedOutput)
	want := []string{"HomeNet", "E-Paper", "Neighbors 5G"}
	if len(ssids) != len(want) {
		t.Fatalf("parseVisibleNetworks returned %v, want %v", ssids, want)
	}
	for i := range want {
		if ssids[i] != want[i] {
			t.Errorf("parseVisibleNetworks[%d] = %q, want %q", i, ssids[i], want[i])
		}
	}
}
