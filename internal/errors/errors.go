package errors

import (
	"encoding/json"
	goerrors "errors"
)

type QwenErrorType int

func New(code QwenErrorType, err error) QwenError {
	return QwenError{Err: err, Message: err.Error(), Code: code}
}

type QwenError struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
	// Remote code and message reported by the image service.
	RemoteCode    string        `json:"remote_code,omitempty"`
	RemoteMessage string        `json:"remote_message,omitempty"`
	Code          QwenErrorType `json:"code"`
}

func (e QwenError) Error() string {
	j, err := json.Marshal(&e)
	if err != nil {
		return e.Message
	}
	return string(j)
}

func (e QwenError) Unwrap() error {
	return e.Err
}

// Is matches any QwenError carrying the same code.
func (e QwenError) Is(target error) bool {
	var t QwenError
	if !goerrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Code returns the error type of the first QwenError in err's chain.
func Code(err error) (QwenErrorType, bool) {
	var e QwenError
	if goerrors.As(err, &e) {
		return e.Code, true
	}
	return UnknownError, false
}

// Remote returns the code and message reported by the remote service, if any.
func Remote(err error) (code, message string) {
	var e QwenError
	if goerrors.As(err, &e) {
		return e.RemoteCode, e.RemoteMessage
	}
	return "", ""
}

// Message returns the human readable message of err without the JSON envelope.
func Message(err error) string {
	var e QwenError
	if goerrors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	return err.Error()
}
