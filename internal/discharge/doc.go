// Package discharge holds the discharge business rules of the bed board: the 24h/48h
// discharge-window classifier, the 07:00-based wait clock for pending discharge requests
// and the request lifecycle checks built on it.
//
// Everything here is pure: callers pass the current instant and the reference location
// explicitly, and no function performs I/O or keeps state.
package discharge
