// Package repository implements the MySQL side of the ticketing store.
// Every repo runs against a querier so the same SQL serves plain reads on
// *sql.DB and serializable transactions on *sql.Tx.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-ticketing/internal/service/ports"
)

// ErrNotFound and ErrDuplicate are the ports sentinels so callers above the
// repository can match them without importing this package.
var (
	ErrNotFound  = ports.ErrNotFound
	ErrDuplicate = ports.ErrDuplicate
)

const mysqlDuplicateEntry = 1062

// isDuplicate reports a unique key violation.  Only the driver's error
// number counts; message text is never inspected.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
