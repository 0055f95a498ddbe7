package submission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ffportal/ffsubmit/pkg/api/types/items"
)

var (
	// a checksum or upload is in flight; navigation and submission must wait.
	ErrBusy = errors.New("please wait: a file upload is in progress")

	// the object has incomplete children.
	ErrNotReady = errors.New("object is not ready: some children are not submitted yet")

	ErrUnknownKey         = errors.New("unknown key")
	ErrAlreadySubmitted   = errors.New("object is already submitted")
	ErrNoPendingCreate    = errors.New("no object creation is in progress")
	ErrCreateInProgress   = errors.New("another object creation is in progress")
	ErrInvalidAlias       = errors.New(`alias should be formatted as "<namespace>:<name>"`)
	ErrNotInitialized     = errors.New("submission is not initialized")
	ErrNotRoundTwo        = errors.New("object is not waiting for round two")
	ErrRootIsNotRemovable = errors.New("the principal object cannot be removed")

	// an item fetched for edit has another @id than requested.
	ErrIdentityMismatch = errors.New("fetched item has another identity")
)

// ValidationError is a rejection of a submission (or check-only request) by the portal.
type ValidationError struct {
	Key      Key
	Display  string
	TestOnly bool
	Entries  []items.ErrorEntry
	Detail   string
}

func (ve *ValidationError) Error() string {
	verb := "submission"
	if ve.TestOnly {
		verb = "validation"
	}
	msgs := []string{}
	for _, e := range ve.Entries {
		msgs = append(msgs, e.String())
	}
	if len(msgs) == 0 && ve.Detail != "" {
		msgs = append(msgs, ve.Detail)
	}
	return fmt.Sprintf("%s of %s is rejected: %s", verb, ve.Display, strings.Join(msgs, "; "))
}

// AliasConflictError means the alias is already taken, in this session or in the portal.
type AliasConflictError struct {
	Alias string

	// true if the alias is found in the portal, false if it is used in this session.
	Remote bool
}

func (ae *AliasConflictError) Error() string {
	if ae.Remote {
		return fmt.Sprintf("alias %s already exists in the database", ae.Alias)
	}
	return fmt.Sprintf("alias %s is already used in this submission", ae.Alias)
}

// ChecksumConflictError means another file with the same MD5 is in the portal.
type ChecksumConflictError struct {
	ID     string
	MD5Sum string
}

func (ce *ChecksumConflictError) Error() string {
	return fmt.Sprintf("MD5 conflicts with another file (%s, md5sum = %s)", ce.ID, ce.MD5Sum)
}

// UploadTransportError means the file transfer failed after its checksum was committed.
type UploadTransportError struct {
	ID    string
	Cause error
}

func (ue *UploadTransportError) Error() string {
	return fmt.Sprintf("upload of %s failed: %s", ue.ID, ue.Cause)
}

func (ue *UploadTransportError) Unwrap() error {
	return ue.Cause
}
