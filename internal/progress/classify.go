package progress

import "strings"

type ErrorKind int

const (
	// ErrorUnknown is an error line matching no known signature. Not retried.
	ErrorUnknown ErrorKind = iota
	// ErrorNetwork is transient and eligible for retry
	ErrorNetwork
	// ErrorFatal will fail the same way on every attempt
	ErrorFatal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNetwork:
		return "network"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type signature struct {
	pattern string
	kind    ErrorKind
}

// signatures are matched in order against the lowercased line. Fatal entries
// come first so "Unable to download webpage: HTTP Error 404" stays fatal.
var signatures = []signature{
	{"unsupported url", ErrorFatal},
	{"is not a valid url", ErrorFatal},
	{"private video", ErrorFatal},
	{"video is private", ErrorFatal},
	{"video unavailable", ErrorFatal},
	{"video is unavailable", ErrorFatal},
	{"has been removed", ErrorFatal},
	{"account associated with this video has been terminated", ErrorFatal},
	{"requested format is not available", ErrorFatal},
	{"requested format not available", ErrorFatal},
	{"no video formats found", ErrorFatal},
	{"sign in to confirm your age", ErrorFatal},
	{"members-only", ErrorFatal},
	{"http error 404", ErrorFatal},
	{"http error 403", ErrorFatal},
	{"http error 410", ErrorFatal},

	{"timed out", ErrorNetwork},
	{"timeout", ErrorNetwork},
	{"connection reset", ErrorNetwork},
	{"connection refused", ErrorNetwork},
	{"connection aborted", ErrorNetwork},
	{"remote end closed connection", ErrorNetwork},
	{"network is unreachable", ErrorNetwork},
	{"temporary failure in name resolution", ErrorNetwork},
	{"name or service not known", ErrorNetwork},
	{"getaddrinfo failed", ErrorNetwork},
	{"http error 429", ErrorNetwork},
	{"too many requests", ErrorNetwork},
	{"http error 500", ErrorNetwork},
	{"http error 502", ErrorNetwork},
	{"http error 503", ErrorNetwork},
	{"http error 504", ErrorNetwork},
	{"ssl:", ErrorNetwork},
	{"ssl error", ErrorNetwork},
	{"certificate verify failed", ErrorNetwork},
	{"incompleteread", ErrorNetwork},
	{"unable to download webpage", ErrorNetwork},
	{"unable to download video data", ErrorNetwork},
	{"got error", ErrorNetwork},
}

// Classify maps an error message to the kind that drives the retry decision
func Classify(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	for _, s := range signatures {
		if strings.Contains(lower, s.pattern) {
			return s.kind
		}
	}
	return ErrorUnknown
}
