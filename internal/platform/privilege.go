package platform

import (
	"strings"

	naaerrors "github.com/turtacn/naa/pkg/errors"
)

// ElevationCheck reports whether the process runs with administrator rights.
type ElevationCheck func() (bool, error)

// RequirePrivilege fails with a coded error when a feature that needs
// administrator rights is enabled and the process is not elevated.
// needed lists the config keys asking for elevation; none means no check.
func RequirePrivilege(check ElevationCheck, needed ...string) error {
	if len(needed) == 0 {
		return nil
	}
	if check == nil {
		check = IsElevated
	}
	ok, err := check()
	if err != nil {
		return naaerrors.New(naaerrors.ErrCodePrivilege, "RequirePrivilege", "cannot determine privileges", err)
	}
	if !ok {
		return naaerrors.New(naaerrors.ErrCodePrivilege, "RequirePrivilege",
			"administrator rights are required by "+strings.Join(needed, " and ")+"; restart elevated or disable it", nil)
	}
	return nil
}

// Personal.AI order the ending
