package common

// ErrorKind identifies a class of bridge client failure.
// Use errors.Is against the constants below, errors are marked with
// errors.Mark so the kind survives wrapping.
type ErrorKind string

const (
	// transport failure reaching the node or the indexer
	ErrNetwork = ErrorKind("network error")
	// JSON or BCS shape mismatch
	ErrDeserialization = ErrorKind("deserialization error")
	// malformed account or BTC address string
	ErrInvalidAddress = ErrorKind("invalid address")
	// transaction executed but the VM rejected it
	ErrTransactionFailed = ErrorKind("transaction failed")
	ErrInvalidArgument   = ErrorKind("invalid argument")
	ErrConfig            = ErrorKind("configuration error")
	ErrNotFound          = ErrorKind("not found")
	// event handler returned an error
	ErrHandler = ErrorKind("handler error")
)

// Error satisfies the error interface.
func (e ErrorKind) Error() string {
	return string(e)
}
