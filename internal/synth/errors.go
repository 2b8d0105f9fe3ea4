package synth

import "fmt"

// ErrorKind classifies where in the pipeline a synthesis failed.
type ErrorKind int

const (
	// ProviderFailure - the TTS provider call failed or produced an
	// implausibly small raw artifact.
	ProviderFailure ErrorKind = iota
	// TranscodeFailure - converting raw audio to the telephony format failed.
	TranscodeFailure
	// PermissionFailure - the destination could not be made readable by
	// the telephony process.
	PermissionFailure
	// ValidationFailure - the destination artifact failed the final
	// existence/size/duration check.
	ValidationFailure
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ProviderFailure:
		return "PROVIDER_FAILURE"
	case TranscodeFailure:
		return "TRANSCODE_FAILURE"
	case PermissionFailure:
		return "PERMISSION_FAILURE"
	case ValidationFailure:
		return "VALIDATION_FAILURE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", k)
	}
}

// Error is a synthesis-stage failure.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("synthesis %s for %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
