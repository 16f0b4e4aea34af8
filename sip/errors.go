package sip

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors returned for invalid input or state.
var (
	ErrAlreadyGenerated         = errors.New("Technical metadata has already been generated for the digital object.")
	ErrVersionWithoutFormat     = errors.New("Predefined file format version is given, but file format is not.")
	ErrFormatWithoutVersion     = errors.New("Predefined file format is given, but file format version is not.")
	ErrAlgorithmWithoutChecksum = errors.New("Predefined checksum algorithm is given, but checksum is not.")
	ErrChecksumWithoutAlgorithm = errors.New("Predefined checksum is given, but checksum algorithm is not.")
	ErrCSVParameters            = errors.New("CSV specific parameters (CSVHasHeader, CSVDelimiter, CSVRecordSeparator, CSVQuotingCharacter) can be used only with CSV files")
	ErrEmptyInput               = errors.New("Given 'files' is empty. Structural map can not be generated with zero digital objects.")
	ErrNoDigitalObjects         = errors.New("SIP does not contain any digital objects.")
	ErrNoStructuralMap          = errors.New("SIP does not have a default structural map.")
	ErrNoSigner                 = errors.New("A signing key is needed to finalize the SIP.")
	ErrNoGenerator              = errors.New("A technical metadata generator is needed to build a SIP from a directory.")
)

// PathConflictError is returned when one package path is used both for a
// file and for a directory.
type PathConflictError struct {
	Path string
}

func (e *PathConflictError) Error() string {
	return fmt.Sprintf("Path '%s' is used both as a file and as a directory.", e.Path)
}

// OutputExistsError is returned by Finalize when the output is already
// present.
type OutputExistsError struct {
	Path string
}

func (e *OutputExistsError) Error() string {
	return fmt.Sprintf("Given output filepath '%s' exists already.", e.Path)
}
