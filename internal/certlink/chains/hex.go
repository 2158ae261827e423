package chains

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ChainIDToHex encodes a chain id as the 0x-prefixed quantity wallets expect.
func ChainIDToHex(id uint64) string {
	return hexutil.EncodeUint64(id)
}

// ParseChainIDHex decodes a wallet-reported chain id. Leading zeros and an
// upper-case prefix are tolerated; values above 64 bits are rejected.
func ParseChainIDHex(raw string) (uint64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errors.New("chain id is empty")
	}
	s = NormalizeHex0x(s)
	digits := s[2:]
	if digits == "" {
		return 0, errors.Newf("chain id %q has no digits", raw)
	}

	id, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid chain id %q", raw)
	}
	return id, nil
}

func NormalizeHex0x(s string) string {
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return "0x" + s[2:]
	}
	return "0x" + s
}
