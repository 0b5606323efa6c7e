// Package database provides the SQLite connection used for local history
// storage.
//
// It opens the file with WAL mode and a busy timeout so a status poll can
// read while an action is being recorded, restricts the file to owner
// read/write, and caps the pool at one connection since SQLite allows a
// single writer. Schema ownership lives with the packages that store data;
// this package only hands out the connection.
package database
