package repositories

import "errors"

var (
	// ErrAccountExists indicates the merchant account is already linked for the user.
	ErrAccountExists = errors.New("account repository: account already linked")
	// ErrCredentialsNotFound indicates no token pair is stored for the account.
	ErrCredentialsNotFound = errors.New("credential repository: credentials not found")
)
