package rdoq

import "errors"

var (
	// ErrBlockSize is returned for a block width other than 4, 8, 16 or 32.
	ErrBlockSize = errors.New("rdoq: unsupported block size")

	// ErrBlockParams is returned for an unknown component or scan mode.
	ErrBlockParams = errors.New("rdoq: invalid block parameters")

	// ErrBufferSize is returned when the coefficient or level buffer is
	// shorter than Width*Width.
	ErrBufferSize = errors.New("rdoq: buffer too small")

	// ErrNilContexts is returned when no context set is supplied.
	ErrNilContexts = errors.New("rdoq: nil context set")
)
