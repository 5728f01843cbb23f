package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

var (
	// ErrNotFound row does not exist
	ErrNotFound = errors.New("not found")
	// ErrPendingRequestExists the patient already has a pending discharge request
	ErrPendingRequestExists = errors.New("patient already has a pending discharge request")
	// ErrStaleRequest the request left pending between read and write
	ErrStaleRequest = errors.New("discharge request is no longer pending")
)

// isUniqueViolation 唯一索引冲突 (postgres 23505, mysql 1062)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}
