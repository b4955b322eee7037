package server

import "net"

// LocalIP attempts to get the local IP address the host would use for
// outbound traffic. Used as the fallback host when no public host is
// configured and no proxy hint is available.
func LocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
