package user

import "errors"

var (
	// ErrNotFound is returned by lookups that find nothing. Registry lookups
	// report absence with a bool instead.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidField is returned when an update names a field the user's role
	// does not have or does not allow changing.
	ErrInvalidField = errors.New("invalid field")
	// ErrValueParse is returned when an update value cannot be coerced to the
	// field's type.
	ErrValueParse = errors.New("value parse error")
	// ErrInvalidValue is returned when a value parses but fails a field rule
	// such as the email or contact number format.
	ErrInvalidValue = errors.New("invalid value")
	// ErrInvalidTimestampFormat is returned when a stored timestamp does not
	// match the canonical layout.
	ErrInvalidTimestampFormat = errors.New("invalid timestamp format")
	// ErrInvalidDepartment is returned for unrecognized department names.
	ErrInvalidDepartment = errors.New("invalid department")
	// ErrUnknownRole is returned for unrecognized role names.
	ErrUnknownRole = errors.New("unknown role")
	// ErrStorageIO is returned when a user file cannot be written, read or removed.
	ErrStorageIO = errors.New("storage i/o error")
	// ErrDuplicateID is returned when a newly generated id is already cached.
	ErrDuplicateID = errors.New("duplicate user id")
)
