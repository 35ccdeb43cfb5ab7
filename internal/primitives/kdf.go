package primitives

import (
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// DefaultShifts is the default KDF cost parameter: memory use is
// approximately 2^shifts KiB.
const DefaultShifts = 14

// DefaultShiftsMax bounds the header-reader's try-every-cost loop
// (§9 DESIGN NOTES: bound shifts_max to prevent a denial of service on a
// malformed header).
const DefaultShiftsMax = 20

// KDFPassword derives outLen bytes from password and salt using a
// memory-hard KDF with cost parameter shifts (memory usage is roughly
// 2^shifts KiB; CPU cost scales with it too). r and p are the scrypt
// block-size and parallelization parameters; pass 8 and 1 for the
// conventional values.
func KDFPassword(password, salt []byte, shifts, r, p, outLen int) ([]byte, error) {
	if shifts < 1 {
		return nil, fmt.Errorf("primitives: KDFPassword: shifts must be >= 1, got %d", shifts)
	}
	n := 1 << uint(shifts)
	key, err := scrypt.Key(password, salt, n, r, p, outLen)
	if err != nil {
		return nil, fmt.Errorf("primitives: KDFPassword: %w", err)
	}
	return key, nil
}
