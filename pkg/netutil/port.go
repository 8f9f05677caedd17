package netutil

import (
	"net"
	"strconv"
)

// GetAvailablePortForAddress returns a port that's free to listen on at host
func GetAvailablePortForAddress(host string) (int32, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer listener.Close()

	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		return int32(addr.Port), nil
	}

	_, port, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.Atoi(port)
	return int32(parsed), err
}
