package cli

import "errors"

// Common CLI errors
var (
	ErrConfigExists      = errors.New("config file already exists - use --force to overwrite")
	ErrMissingVariables  = errors.New("missing required variables")
	ErrInvalidVarsFile   = errors.New("invalid variables file")
	ErrInvalidAssignment = errors.New("invalid --set value, expected key=value")
)
