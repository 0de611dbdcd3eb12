package storage

import "errors"

// ErrInsufficientFunds is returned when a debit would take an account balance below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrAccountNotFound is returned when no account (user or pool) has the given ID.
var ErrAccountNotFound = errors.New("account not found")

// ErrTokenNotFound is returned when no gift token has the given ID.
var ErrTokenNotFound = errors.New("gift token not found")

// ErrConflict is returned when a concurrent writer changed a record between read and commit.
var ErrConflict = errors.New("concurrent modification")

// ErrAlreadyExists is returned when creating a record whose ID is already taken.
var ErrAlreadyExists = errors.New("record already exists")
