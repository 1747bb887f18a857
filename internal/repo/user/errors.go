package user

import "errors"

// ErrUnknownDriver is returned by RepositoryFactoryFor for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown user repository driver")
