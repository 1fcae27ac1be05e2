package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/host"
)

// MachineToken derives the agent token from stable host identity, so an
// installation prints the same token on every start.
func MachineToken() (string, error) {
	info, err := host.Info()
	if err != nil {
		return "", errors.Wrap(err, "read host identity")
	}
	return tokenFrom(info.Hostname, info.HostID, info.Platform, info.KernelArch), nil
}

func tokenFrom(hostname, hostID, platform, arch string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s-%s", hostname, hostID, platform, arch)))
	return hex.EncodeToString(sum[:])[:32]
}
