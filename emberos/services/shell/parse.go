package shell

import (
	"errors"

	"github.com/google/shlex"
)

// maxArgs bounds the argument tokens kept per line; extras are dropped.
const maxArgs = 8

var errBadQuoting = errors.New("unterminated quote")

// tokenize splits a command line into its name and arguments. Quoting
// follows shell rules as a convenience; a dangling quote is a user error.
func tokenize(line string) (name string, args []string, err error) {
	fields, err := shlex.Split(line)
	if err != nil {
		return "", nil, errBadQuoting
	}
	if len(fields) == 0 {
		return "", nil, nil
	}
	args = fields[1:]
	if len(args) > maxArgs {
		args = args[:maxArgs]
	}
	return fields[0], args, nil
}
