package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// IsPermanent reports whether err is a server rejection that reconnecting
// cannot fix: bad credentials (class 28) or a missing database (3D000).
func IsPermanent(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code.Class() == "28" || pqErr.Code == "3D000"
}
