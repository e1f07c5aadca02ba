package ledger

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed certificate_nft.abi.json
var embeddedABI []byte

// Artifact is the deploy output holding the contract address and ABI.
type Artifact struct {
	Address string          `json:"address"`
	ABI     json.RawMessage `json:"abi"`
}

// LoadArtifact reads a deploy artifact file. An empty path yields the
// embedded ABI with no address.
func LoadArtifact(path string) (*Artifact, error) {
	if strings.TrimSpace(path) == "" {
		return &Artifact{ABI: embeddedABI}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decode contract artifact: %w", err)
	}
	if len(bytes.TrimSpace(artifact.ABI)) == 0 {
		return nil, fmt.Errorf("contract artifact %s has no abi", path)
	}

	return &artifact, nil
}

func (a *Artifact) parseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse contract abi: %w", err)
	}
	for _, method := range []string{mintMethod, revokeMethod} {
		if _, ok := parsed.Methods[method]; !ok {
			return abi.ABI{}, fmt.Errorf("contract abi has no %s method", method)
		}
	}
	return parsed, nil
}
