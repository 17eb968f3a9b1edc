package main

import (
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/epapersync/epapersync/wifi"
)

// EscapeWifiString handles the special character escaping for SSID and Password.
func EscapeWifiString(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`;`, `\;`,
		`,`, `\,`,
		`:`, `\:`,
		`"`, `\"`,
	)
	return r.Replace(s)
}

// GenerateWifiQRCode builds the standard WIFI: connection string for the
// network and renders it as a terminal QR code. Phones that scan it join
// the network directly, which is the manual fallback when a revert left
// the host stranded on the device network.
func GenerateWifiQRCode(id wifi.Identity) (string, error) {
	var b strings.Builder

	b.WriteString("WIFI:S:")
	b.WriteString(EscapeWifiString(id.SSID))
	b.WriteString(";")

	if id.Password != "" {
		b.WriteString("T:WPA;P:")
		b.WriteString(EscapeWifiString(id.Password))
		b.WriteString(";")
	} else {
		b.WriteString("T:nopass;")
	}

	b.WriteString(";;")

	q, err := qrcode.New(b.String(), qrcode.Medium)
	if err != nil {
		return "", err
	}

	return q.ToSmallString(false), nil
}
