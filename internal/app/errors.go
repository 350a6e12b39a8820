package app

import "errors"

// Fatal error classes. These signal a broken caller contract or a storage
// failure and are never shown to end users. Expected, user-facing failures
// are returned as domain.Result values instead.
var (
	// ErrInvalidArgument: a required input was missing or structurally invalid.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIntegrity: an invariant the caller should have guaranteed does not
	// hold, such as a self-transfer or a transfer without a connection.
	ErrIntegrity = errors.New("integrity violation")
	// ErrCurrentUserNotFound: the authenticated user could not be loaded.
	ErrCurrentUserNotFound = errors.New("current user not found")
)

// User-facing messages.
const (
	msgRegistered      = "Your registration was successful"
	msgProfileUpdated  = "Your profile has been updated"
	msgNothingChanged  = "You have not changed anything"
	msgInvalidName     = "The name may only contain letters, digits, spaces and hyphens"
	msgNameTooLong     = "The name must not exceed 100 characters"
	msgNameTaken       = "This name is already used"
	msgInvalidEmail    = "Invalid email format"
	msgEmailTaken      = "This email is already used"
	msgWeakPassword    = "The password must have at least 8 characters including an uppercase letter, a digit and one of @#$%^&+=!"
	msgBadCredentials  = "Invalid email or password"
	msgLoggedIn        = "Login successful"
	msgEmailRequired   = "Email is required"
	msgUnknownUser     = "User %s does not exist"
	msgAddSelf         = "You cannot add yourself"
	msgAlreadyAdded    = "%s is already in your connections"
	msgConnectionAdded = "%s has been added to your connections"
	msgInsufficient    = "Your balance of %s € is insufficient"
	msgTransferDone    = "The transfer of %s € has been completed"
	msgNoTransactions  = "No transactions found for this user"
	msgInvoiceCreated  = "Invoice %d created for %d transactions totalling %s €"
)
