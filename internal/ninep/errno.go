package ninep

import "fmt"

// Errno is a raw Linux errno returned verbatim by a remote Rlerror
// reply (spec.md §7 class 1: "expected remote errors"). Higher layers
// translate the common ones to their own error numbering; this package
// only preserves the value and gives it an `error` face.
type Errno int32

func (e Errno) Error() string {
	if name, ok := errnoNames[e]; ok {
		return fmt.Sprintf("%s (errno %d)", name, int32(e))
	}
	return fmt.Sprintf("errno %d", int32(e))
}

// Is lets callers match against the common sentinel errnos with errors.Is.
func (e Errno) Is(target error) bool {
	te, ok := target.(Errno)
	return ok && te == e
}

// The subset of Linux errno values classicvirtio's 9p.h enumerates and
// that spec.md §7 calls out for translation.
const (
	EPERM    Errno = 1
	ENOENT   Errno = 2
	EIO      Errno = 5
	E2BIG    Errno = 7
	EBADF    Errno = 9
	EACCES   Errno = 13
	EEXIST   Errno = 17
	ENOTDIR  Errno = 20
	EISDIR   Errno = 21
	EINVAL   Errno = 22
	ENFILE   Errno = 23
	EMFILE   Errno = 24
	EFBIG    Errno = 27
	ENOSPC   Errno = 28
	ENOTEMPTY Errno = 39
	ENODATA  Errno = 61
	ENAMETOOLONG Errno = 36
	EREMOTEIO Errno = 121
)

var errnoNames = map[Errno]string{
	EPERM:        "EPERM",
	ENOENT:       "ENOENT",
	EIO:          "EIO",
	E2BIG:        "E2BIG",
	EBADF:        "EBADF",
	EACCES:       "EACCES",
	EEXIST:       "EEXIST",
	ENOTDIR:      "ENOTDIR",
	EISDIR:       "EISDIR",
	EINVAL:       "EINVAL",
	ENFILE:       "ENFILE",
	EMFILE:       "EMFILE",
	EFBIG:        "EFBIG",
	ENOSPC:       "ENOSPC",
	ENOTEMPTY:    "ENOTEMPTY",
	ENODATA:      "ENODATA",
	ENAMETOOLONG: "ENAMETOOLONG",
	EREMOTEIO:    "EREMOTEIO",
}
