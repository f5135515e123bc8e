package helpers

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

func FormatFloat(value float64) string {
	formatted := fmt.Sprintf("%.3f", value)
	return strings.TrimRight(strings.TrimRight(formatted, "0"), ".")
}

// BrokerURL builds the paho server URI for a plain TCP broker.
func BrokerURL(host string, port int) string {
	return "tcp://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// ListenAddr returns a listen address on all interfaces for port.
func ListenAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
