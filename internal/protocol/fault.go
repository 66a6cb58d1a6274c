package protocol

import (
	"errors"

	"github.com/vovakirdan/pathrace/internal/multiplayer"
)

// FaultCode identifies a failure kind on the wire.
type FaultCode string

const (
	CodeNameTaken       FaultCode = "NameTaken"
	CodeIllegalMove     FaultCode = "IllegalMove"
	CodeVersionMismatch FaultCode = "VersionMismatch"
	CodeDuplicateMove   FaultCode = "DuplicateMove"
	CodeNoRound         FaultCode = "NoRound"
	CodeNotPlayer       FaultCode = "NotPlayer"
	CodeNotJoined       FaultCode = "NotJoined"
	CodeInvalidName     FaultCode = "InvalidName"
	CodeAutomatedBanned FaultCode = "AutomatedBanned"
	CodeBadRequest      FaultCode = "BadRequest"
	CodeUnknownMethod   FaultCode = "UnknownMethod"
	CodeInternal        FaultCode = "Internal"
)

var codeErrors = []struct {
	code FaultCode
	err  error
}{
	{CodeNameTaken, multiplayer.ErrNameTaken},
	{CodeIllegalMove, multiplayer.ErrIllegalMove},
	{CodeVersionMismatch, multiplayer.ErrVersionMismatch},
	{CodeDuplicateMove, multiplayer.ErrDuplicateMove},
	{CodeNoRound, multiplayer.ErrNoRound},
	{CodeNotPlayer, multiplayer.ErrNotPlayer},
	{CodeNotJoined, multiplayer.ErrNotJoined},
	{CodeInvalidName, multiplayer.ErrInvalidName},
	{CodeAutomatedBanned, multiplayer.ErrAutomatedBanned},
}

// Fault is the error object of a failed response.
type Fault struct {
	Code    FaultCode `json:"code"`
	Message string    `json:"message"`
}

// Error implements error.
func (f *Fault) Error() string {
	if f.Message == "" {
		return string(f.Code)
	}
	return string(f.Code) + ": " + f.Message
}

// Unwrap maps the code back to the matching server error so callers can use
// errors.Is on either side of the wire.
func (f *Fault) Unwrap() error {
	for _, ce := range codeErrors {
		if ce.code == f.Code {
			return ce.err
		}
	}
	return nil
}

// FaultFor converts a server error into a wire fault.
func FaultFor(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return &Fault{Code: ce.code, Message: err.Error()}
		}
	}
	return &Fault{Code: CodeInternal, Message: err.Error()}
}
