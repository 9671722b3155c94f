package transitions

import "errors"

var (
	ErrBookNotFound         = errors.New("book not found")
	ErrHolderNotFound       = errors.New("holder not found")
	ErrLibraryHolderMissing = errors.New("library holder not found")
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Kind classifies a failed Result. It is not part of the JSON body.
type Kind int

const (
	KindNone Kind = iota
	KindNotFound
	KindInvariantViolation
	KindPersistenceFault
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvariantViolation:
		return "invariant_violation"
	case KindPersistenceFault:
		return "persistence_fault"
	default:
		return "none"
	}
}

// Result is the tagged outcome of a transition. Success bodies carry book_id and
// holder_id, error bodies carry message.
type Result struct {
	Status   Status `json:"status"`
	BookID   uint   `json:"book_id,omitempty"`
	HolderID uint   `json:"holder_id,omitempty"`
	Message  string `json:"message,omitempty"`

	Kind Kind  `json:"-"`
	Err  error `json:"-"`
}

func (r Result) OK() bool { return r.Status == StatusSuccess }

func Success(bookID, holderID uint) Result {
	return Result{Status: StatusSuccess, BookID: bookID, HolderID: holderID}
}

// Failure builds an error Result; err is kept for errors.Is checks.
func Failure(kind Kind, err error, message string) Result {
	return Result{Status: StatusError, Message: message, Kind: kind, Err: err}
}
