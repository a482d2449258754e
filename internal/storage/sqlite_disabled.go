//go:build !sqlite
// +build !sqlite

package storage

import (
	"errors"

	logx "telesend/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	return nil, errors.New("sqlite storage driver not built (rebuild with -tags sqlite)")
}
