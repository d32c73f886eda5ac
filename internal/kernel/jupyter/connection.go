package jupyter

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
)

// ConnectionInfo is the JSON document Jupyter kernels read their
// transport configuration from (spec.md §4.3.4): five ports, the HMAC
// key, and the wire transport/signature scheme.
type ConnectionInfo struct {
	ShellPort       int    `json:"shell_port"`
	IOPubPort       int    `json:"iopub_port"`
	StdinPort       int    `json:"stdin_port"`
	ControlPort     int    `json:"control_port"`
	HBPort          int    `json:"hb_port"`
	IP              string `json:"ip"`
	Key             string `json:"key"`
	Transport       string `json:"transport"`
	SignatureScheme string `json:"signature_scheme"`
	KernelName      string `json:"kernel_name"`
}

func (c ConnectionInfo) endpoint(port int) string {
	return fmt.Sprintf("%s://%s:%d", c.Transport, c.IP, port)
}

// newConnectionInfo allocates five free TCP ports on the loopback
// interface and a random HMAC key, producing a connection descriptor
// ready to launch a kernel against.
func newConnectionInfo(kernelName string) (ConnectionInfo, error) {
	ports := make([]int, 5)
	for i := range ports {
		p, err := freePort()
		if err != nil {
			return ConnectionInfo{}, fmt.Errorf("allocating port: %w", err)
		}
		ports[i] = p
	}

	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return ConnectionInfo{}, fmt.Errorf("generating hmac key: %w", err)
	}

	return ConnectionInfo{
		ShellPort:       ports[0],
		IOPubPort:       ports[1],
		StdinPort:       ports[2],
		ControlPort:     ports[3],
		HBPort:          ports[4],
		IP:              "127.0.0.1",
		Key:             hex.EncodeToString(keyBytes),
		Transport:       "tcp",
		SignatureScheme: "hmac-sha256",
		KernelName:      kernelName,
	}, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// writeConnectionFile serializes conn to a temporary file and returns
// its path, for substitution into a kernel spec's argv template.
func writeConnectionFile(conn ConnectionInfo) (string, error) {
	f, err := os.CreateTemp("", "docengine-kernel-*.json")
	if err != nil {
		return "", fmt.Errorf("creating connection file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(conn); err != nil {
		return "", fmt.Errorf("writing connection file: %w", err)
	}
	return f.Name(), nil
}
