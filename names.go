package groupcomm

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// CheckName rejects identifiers that cannot be written into a task
// configuration: group, operator and task names must be valid UTF-8.
func CheckName(what, name string) error {
	if !utf8.ValidString(name) {
		return errors.Wrapf(ErrInvalidArg, "%s %q is not valid UTF-8", what, name)
	}
	return nil
}

// CheckPathSegment rejects names that cannot be used as one element of a
// file path or store key: empty, ".", ".." or containing a slash.
func CheckPathSegment(what, name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return errors.Wrapf(ErrInvalidArg, "%s %q is not a valid path element", what, name)
	}
	return nil
}
