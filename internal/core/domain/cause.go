package domain

import (
	"fmt"
	"strings"
)

// DisconnectCause explains why a call ended.
type DisconnectCause int

const (
	CauseUnknown DisconnectCause = iota
	CauseError
	CauseLocal
	CauseRemote
	CauseCanceled
	CauseMissed
	CauseRejected
	CauseBusy
	CauseRestricted
	CauseOther
	CauseConnectionManagerNotSupported
	CauseAnsweredElsewhere
	CauseCallPulled
)

var causeNames = map[DisconnectCause]string{
	CauseUnknown:                       "UNKNOWN",
	CauseError:                         "ERROR",
	CauseLocal:                         "LOCAL",
	CauseRemote:                        "REMOTE",
	CauseCanceled:                      "CANCELED",
	CauseMissed:                        "MISSED",
	CauseRejected:                      "REJECTED",
	CauseBusy:                          "BUSY",
	CauseRestricted:                    "RESTRICTED",
	CauseOther:                         "OTHER",
	CauseConnectionManagerNotSupported: "CONNECTION_MANAGER_NOT_SUPPORTED",
	CauseAnsweredElsewhere:             "ANSWERED_ELSEWHERE",
	CauseCallPulled:                    "CALL_PULLED",
}

func (c DisconnectCause) String() string {
	if name, ok := causeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(c))
}

func ParseDisconnectCause(s string) (DisconnectCause, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for cause, name := range causeNames {
		if name == want {
			return cause, nil
		}
	}
	return CauseUnknown, fmt.Errorf("unknown disconnect cause %q", s)
}
