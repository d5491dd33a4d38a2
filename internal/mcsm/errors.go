package mcsm

import "fmt"

// TransportError covers connect/read failures and bodies that are not the
// panel's JSON envelope. It is never retried automatically.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("panel request %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PanelError is a well-formed envelope whose status field is not 200. The
// code is the application status reported by the panel, not the HTTP status.
type PanelError struct {
	Code    int
	Message string
}

func (e *PanelError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("panel error [%d]", e.Code)
	}
	return fmt.Sprintf("panel error [%d] %s", e.Code, e.Message)
}
